package acapy

import (
	"errors"
)

var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrNilParameter       = errors.New("nil parameter")
	ErrInvalidCACert      = errors.New("invalid CA certificate")
	ErrAgentUnavailable   = errors.New("credential agent unavailable")
	ErrTenantTokenFailed  = errors.New("wallet token request failed")
	ErrMissingWalletDID   = errors.New("wallet DID is missing")
	ErrInvalidAgentReply  = errors.New("invalid agent reply")
	ErrInvalidInvitation  = errors.New("invalid invitation")
	ErrInvalidProofFormat = errors.New("invalid proof format")
)
