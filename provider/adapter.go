package provider

import (
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
	"github.com/openauthn/vcauthn/registry"
)

// EngineConfig is one complete, immutable configuration for the OIDC engine:
// everything it needs to serve discovery, JWKS, authorization and token
// endpoints. A new one is built for every adapter initialization; the engine
// must never see a partially-applied mix of old and new.
type EngineConfig struct {
	SigningKey *SigningKey
	Discovery  *DiscoveryDocument
	Clients    registry.Snapshot
	Subjects   *SubjectFactory
}

// Adapter owns the engine's active configuration and replaces it atomically.
// Initialize may be called any number of times; in-flight requests keep the
// snapshot they started with.
type Adapter struct {
	logger  hclog.Logger
	current atomic.Pointer[EngineConfig]
}

// NewAdapter creates an uninitialized Adapter.
// Supported options: WithLogger.
func NewAdapter(opt ...Option) *Adapter {
	opts := getOpts(opt...)
	return &Adapter{
		logger: opts.withLogger,
	}
}

// Initialize atomically replaces the engine's active configuration. An empty
// client set is not an error: a fresh deployment has no relying parties
// until the first registry write, which re-initializes the adapter and
// completes bootstrap.
func (a *Adapter) Initialize(key *SigningKey, doc *DiscoveryDocument, clients registry.Snapshot, subjects *SubjectFactory) error {
	const op = "Adapter.Initialize"
	if key == nil {
		return fmt.Errorf("%s: signing key is nil: %w", op, ErrNilParameter)
	}
	if doc == nil {
		return fmt.Errorf("%s: discovery document is nil: %w", op, ErrNilParameter)
	}
	if subjects == nil {
		return fmt.Errorf("%s: subject factory is nil: %w", op, ErrNilParameter)
	}
	if len(clients) == 0 {
		a.logger.Warn("initializing engine with no registered clients; authorization requests will fail until a client is registered")
	}
	// copy so later registry mutations cannot leak into a published config
	snap := make(registry.Snapshot, len(clients))
	for id, c := range clients {
		snap[id] = c
	}
	cfg := &EngineConfig{
		SigningKey: key,
		Discovery:  doc,
		Clients:    snap,
		Subjects:   subjects,
	}
	a.current.Store(cfg)
	a.logger.Info("engine configuration replaced", "clients", len(snap), "issuer", doc.Issuer)
	return nil
}

// Current returns the active configuration, or ErrNotInitialized before the
// first successful Initialize.
func (a *Adapter) Current() (*EngineConfig, error) {
	const op = "Adapter.Current"
	cfg := a.current.Load()
	if cfg == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotInitialized)
	}
	return cfg, nil
}

// BindRegistry re-initializes the adapter with the new client snapshot after
// every registry mutation, keeping the key, discovery document and subject
// factory of the current configuration. Call after the first Initialize.
func (a *Adapter) BindRegistry(r *registry.Registry) {
	if r == nil {
		return
	}
	r.OnChange(func(snap registry.Snapshot) {
		cfg := a.current.Load()
		if cfg == nil {
			a.logger.Warn("registry changed before adapter initialization; ignoring")
			return
		}
		if err := a.Initialize(cfg.SigningKey, cfg.Discovery, snap, cfg.Subjects); err != nil {
			a.logger.Error("engine re-initialization failed", "error", err)
		}
	})
}
