package exchange

import (
	"sync"

	"github.com/openauthn/vcauthn/acapy"
)

// Status is an attempt's position in the state machine.
type Status string

const (
	StatusCreated   Status = "created"
	StatusInvited   Status = "invited"
	StatusPresented Status = "presented"
	StatusTimedOut  Status = "timed_out"
	StatusVerified  Status = "verified"
	StatusFailed    Status = "failed"
	StatusRevoked   Status = "revoked"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusTimedOut, StatusVerified, StatusFailed, StatusRevoked:
		return true
	}
	return false
}

// Attempt is one OIDC authentication attempt correlated with one
// presentation exchange. Scoped to a single login; never shared across
// logins. All accessors are safe for concurrent use.
type Attempt struct {
	// ID identifies this attempt in logs.
	ID string

	// AuthRequestID correlates the attempt with the OIDC authorization
	// request that started it.
	AuthRequestID string

	mu         sync.Mutex
	status     Status
	exchangeID string
	invitation *acapy.Invitation
	claims     map[string]string
	subject    string
	err        error
}

// Status returns the attempt's current state.
func (a *Attempt) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// ExchangeID returns the agent-assigned exchange identifier, empty until the
// exchange has been created.
func (a *Attempt) ExchangeID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exchangeID
}

// Invitation returns the out-of-band invitation to render to the end user,
// nil until the attempt reaches invited.
func (a *Attempt) Invitation() *acapy.Invitation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.invitation
}

// Claims returns a copy of the credential-derived claims; nil unless the
// attempt is verified.
func (a *Attempt) Claims() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusVerified {
		return nil
	}
	out := make(map[string]string, len(a.claims))
	for k, v := range a.claims {
		out[k] = v
	}
	return out
}

// Subject returns the derived subject identifier; empty unless the attempt
// is verified.
func (a *Attempt) Subject() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusVerified {
		return ""
	}
	return a.subject
}

// Err returns the error that drove the attempt to a failed, revoked or
// timed-out state.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}
