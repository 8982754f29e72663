package exchange

import (
	"errors"
)

var (
	ErrInvalidParameter        = errors.New("invalid parameter")
	ErrNilParameter            = errors.New("nil parameter")
	ErrInvalidTransition       = errors.New("invalid attempt state transition")
	ErrExchangeMismatch        = errors.New("record does not belong to this exchange")
	ErrCredentialRevoked       = errors.New("presented credential is revoked")
	ErrPresentationNotVerified = errors.New("presentation did not verify")
	ErrPresentationAbandoned   = errors.New("presentation exchange abandoned")
	ErrMissingClaims           = errors.New("presentation revealed no claims")
	ErrTimeout                 = errors.New("no presentation before deadline")
)
