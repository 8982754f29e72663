package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-uuid"

	"github.com/openauthn/vcauthn/acapy"
	"github.com/openauthn/vcauthn/provider"
)

// Agent is the slice of the credential-agent gateway the orchestrator
// drives. *acapy.Client satisfies it.
type Agent interface {
	CreatePresentationRequest(ctx context.Context, proofRequest json.RawMessage) (*acapy.PresentationExchangeRecord, error)
	GetPresentationRecord(ctx context.Context, presExID string) (*acapy.PresentationExchangeRecord, error)
	IsRevoked(ctx context.Context, revRegID string) (bool, error)
	CreateInvitation(ctx context.Context, rec *acapy.PresentationExchangeRecord, usePublicDID bool) (*acapy.Invitation, error)
}

// Orchestrator drives presentation-exchange attempts against one agent.
// It is stateless across attempts and safe for concurrent use.
type Orchestrator struct {
	agent        Agent
	subjects     *provider.SubjectFactory
	logger       hclog.Logger
	usePublicDID bool
	deadline     time.Duration
	pollInterval time.Duration
	callTimeout  time.Duration
}

// NewOrchestrator creates an Orchestrator.
// Supported options: WithLogger, WithPublicDID, WithDeadline,
// WithPollInterval, WithCallTimeout.
func NewOrchestrator(agent Agent, subjects *provider.SubjectFactory, opt ...Option) (*Orchestrator, error) {
	const op = "exchange.NewOrchestrator"
	if agent == nil {
		return nil, fmt.Errorf("%s: agent is nil: %w", op, ErrNilParameter)
	}
	if subjects == nil {
		return nil, fmt.Errorf("%s: subject factory is nil: %w", op, ErrNilParameter)
	}
	opts := getOpts(opt...)
	return &Orchestrator{
		agent:        agent,
		subjects:     subjects,
		logger:       opts.withLogger,
		usePublicDID: opts.withPublicDID,
		deadline:     opts.withDeadline,
		pollInterval: opts.withPollInterval,
		callTimeout:  opts.withCallTimeout,
	}, nil
}

// Start creates the presentation exchange and its out-of-band invitation,
// taking a fresh attempt from created to invited. On a gateway failure the
// returned attempt is terminal failed and the gateway's error is returned
// alongside it; there is no retry at this layer.
func (o *Orchestrator) Start(ctx context.Context, authRequestID string, proofRequest json.RawMessage) (*Attempt, error) {
	const op = "Orchestrator.Start"
	if len(proofRequest) == 0 {
		return nil, fmt.Errorf("%s: proof request is empty: %w", op, ErrInvalidParameter)
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a := &Attempt{
		ID:            id,
		AuthRequestID: authRequestID,
		status:        StatusCreated,
	}
	o.logger.Debug("attempt created", "attempt_id", a.ID, "auth_request_id", authRequestID)

	rec, err := o.callCreateRequest(ctx, proofRequest)
	if err != nil {
		o.fail(a, err)
		return a, fmt.Errorf("%s: %w", op, err)
	}
	a.mu.Lock()
	a.exchangeID = rec.PresExID
	a.mu.Unlock()

	inv, err := o.callCreateInvitation(ctx, rec)
	if err != nil {
		o.fail(a, err)
		return a, fmt.Errorf("%s: %w", op, err)
	}
	a.mu.Lock()
	a.invitation = inv
	a.status = StatusInvited
	a.mu.Unlock()
	o.logger.Debug("attempt invited", "attempt_id", a.ID, "pres_ex_id", rec.PresExID)
	return a, nil
}

// Complete consumes a "presentation received" event for the attempt: the
// exchange record, however it was delivered. It checks every referenced
// revocation registry, derives the claims and subject, and moves the attempt
// to its terminal state. Revocation is a first-class negative outcome
// (revoked, ErrCredentialRevoked), distinct from a transport failure
// (failed). When the same event arrives twice, from a poll racing a
// webhook for example, only the first delivery is consumed; the rest
// return ErrInvalidTransition and leave the attempt's outcome untouched.
func (o *Orchestrator) Complete(ctx context.Context, a *Attempt, rec *acapy.PresentationExchangeRecord) error {
	const op = "Orchestrator.Complete"
	if a == nil {
		return fmt.Errorf("%s: attempt is nil: %w", op, ErrNilParameter)
	}
	if rec == nil {
		return fmt.Errorf("%s: record is nil: %w", op, ErrNilParameter)
	}

	// Exactly one delivery claims an invited attempt; a second delivery,
	// concurrent or late, stops at this guard.
	a.mu.Lock()
	switch {
	case a.status.Terminal():
		st := a.status
		a.mu.Unlock()
		return fmt.Errorf("%s: attempt already %s: %w", op, st, ErrInvalidTransition)
	case a.status != StatusInvited:
		st := a.status
		a.mu.Unlock()
		return fmt.Errorf("%s: attempt is %s, expected invited: %w", op, st, ErrInvalidTransition)
	case rec.PresExID != a.exchangeID:
		a.mu.Unlock()
		return fmt.Errorf("%s: record %q for attempt exchange %q: %w", op, rec.PresExID, a.exchangeID, ErrExchangeMismatch)
	}
	a.status = StatusPresented
	a.mu.Unlock()
	o.logger.Debug("attempt presented", "attempt_id", a.ID, "pres_ex_id", rec.PresExID)

	if rec.Verified != "true" {
		err := fmt.Errorf("%s: agent reports verified=%q: %w", op, rec.Verified, ErrPresentationNotVerified)
		o.fail(a, err)
		return err
	}

	for _, revRegID := range rec.RevocationRegistryIDs() {
		revoked, err := o.callIsRevoked(ctx, revRegID)
		if err != nil {
			o.fail(a, err)
			return fmt.Errorf("%s: %w", op, err)
		}
		if revoked {
			err := fmt.Errorf("%s: registry %s: %w", op, revRegID, ErrCredentialRevoked)
			a.mu.Lock()
			if !a.status.Terminal() {
				a.status = StatusRevoked
				a.err = err
			}
			a.mu.Unlock()
			o.logger.Error("attempt revoked", "attempt_id", a.ID, "rev_reg_id", revRegID)
			return err
		}
	}

	claims := rec.RevealedClaims()
	if len(claims) == 0 {
		err := fmt.Errorf("%s: %w", op, ErrMissingClaims)
		o.fail(a, err)
		return err
	}

	a.mu.Lock()
	if a.status.Terminal() {
		st := a.status
		a.mu.Unlock()
		return fmt.Errorf("%s: attempt already %s: %w", op, st, ErrInvalidTransition)
	}
	a.claims = claims
	a.subject = o.subjects.SubjectFor(claims)
	a.status = StatusVerified
	a.mu.Unlock()
	o.logger.Info("attempt verified", "attempt_id", a.ID, "pres_ex_id", rec.PresExID)
	return nil
}

// Poll delivers the presentation-received event by re-fetching the exchange
// record until the wallet has presented, the attempt deadline passes
// (timed_out, ErrTimeout) or ctx is canceled. Cancellation abandons the
// attempt without transitioning it; the agent needs no cleanup.
func (o *Orchestrator) Poll(ctx context.Context, a *Attempt) error {
	const op = "Orchestrator.Poll"
	if a == nil {
		return fmt.Errorf("%s: attempt is nil: %w", op, ErrNilParameter)
	}
	if st := a.Status(); st != StatusInvited {
		return fmt.Errorf("%s: attempt is %s, expected invited: %w", op, st, ErrInvalidTransition)
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadlineCtx.Done():
			if ctx.Err() != nil {
				// abandoned by the caller, not timed out
				return fmt.Errorf("%s: %w", op, ctx.Err())
			}
			err := fmt.Errorf("%s: %w", op, ErrTimeout)
			a.mu.Lock()
			a.status = StatusTimedOut
			a.err = err
			a.mu.Unlock()
			o.logger.Info("attempt timed out", "attempt_id", a.ID)
			return err
		case <-ticker.C:
			rec, err := o.callGetRecord(deadlineCtx, a.ExchangeID())
			if err != nil {
				// a timeout racing the fetch is a timeout, not an agent failure
				if deadlineCtx.Err() != nil {
					continue
				}
				o.fail(a, err)
				return fmt.Errorf("%s: %w", op, err)
			}
			switch {
			case rec.State == "abandoned":
				err := fmt.Errorf("%s: %w", op, ErrPresentationAbandoned)
				o.fail(a, err)
				return err
			case presentationReceived(rec):
				return o.Complete(ctx, a, rec)
			}
		}
	}
}

// presentationReceived reports whether the record carries a presentation the
// orchestrator can act on.
func presentationReceived(rec *acapy.PresentationExchangeRecord) bool {
	return rec.State == "done" || rec.State == "presentation-received"
}

// fail marks the attempt terminally failed unless it already is terminal.
func (o *Orchestrator) fail(a *Attempt, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status.Terminal() {
		return
	}
	a.status = StatusFailed
	a.err = err
	o.logger.Error("attempt failed", "attempt_id", a.ID, "error", err)
}

func (o *Orchestrator) callCreateRequest(ctx context.Context, proofRequest json.RawMessage) (*acapy.PresentationExchangeRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.agent.CreatePresentationRequest(callCtx, proofRequest)
}

func (o *Orchestrator) callCreateInvitation(ctx context.Context, rec *acapy.PresentationExchangeRecord) (*acapy.Invitation, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.agent.CreateInvitation(callCtx, rec, o.usePublicDID)
}

func (o *Orchestrator) callGetRecord(ctx context.Context, presExID string) (*acapy.PresentationExchangeRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.agent.GetPresentationRecord(callCtx, presExID)
}

func (o *Orchestrator) callIsRevoked(ctx context.Context, revRegID string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.agent.IsRevoked(callCtx, revRegID)
}

var _ Agent = (*acapy.Client)(nil)
