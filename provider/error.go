package provider

import (
	"errors"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNilParameter      = errors.New("nil parameter")
	ErrKeyProvisioning   = errors.New("signing key provisioning failed")
	ErrConfiguration     = errors.New("invalid provider configuration")
	ErrNotInitialized    = errors.New("engine adapter not initialized")
	ErrInvalidSigningKey = errors.New("invalid signing key")
)
