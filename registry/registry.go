package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
)

// Snapshot is an immutable view of the registry, keyed by client id. The
// registry never mutates a published snapshot; treat it as read-only.
type Snapshot map[string]ClientConfiguration

// ChangeListener is notified with the new snapshot after every successful
// mutation. Listeners run on the mutating goroutine and should be quick.
type ChangeListener func(Snapshot)

// Registry is the single writer for client configurations. Reads are served
// from an atomically swapped snapshot and never block writers.
type Registry struct {
	store  Store
	logger hclog.Logger

	// mu serializes writers; readers go through snapshot only.
	mu        sync.Mutex
	snapshot  atomic.Value // Snapshot
	listeners []ChangeListener
}

// Option defines a common functional options type
type Option func(interface{})

type options struct {
	withLogger hclog.Logger
}

func getOpts(opt ...Option) options {
	opts := options{withLogger: hclog.NewNullLogger()}
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			if l != nil {
				o.withLogger = l
			}
		}
	}
}

// NewRegistry creates a Registry over the given store and loads the initial
// snapshot from it.
// Supported options: WithLogger.
func NewRegistry(ctx context.Context, store Store, opt ...Option) (*Registry, error) {
	const op = "registry.NewRegistry"
	if store == nil {
		return nil, fmt.Errorf("%s: store is nil: %w", op, ErrNilParameter)
	}
	opts := getOpts(opt...)
	r := &Registry{
		store:  store,
		logger: opts.withLogger,
	}
	if err := r.reload(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// OnChange registers a listener for registry mutations. Intended for wiring
// at startup, before the registry starts taking administrative traffic.
func (r *Registry) OnChange(l ChangeListener) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Snapshot returns the current immutable snapshot.
func (r *Registry) Snapshot() Snapshot {
	s, _ := r.snapshot.Load().(Snapshot)
	return s
}

// List returns every registered configuration. Order is not guaranteed.
func (r *Registry) List() []ClientConfiguration {
	snap := r.Snapshot()
	out := make([]ClientConfiguration, 0, len(snap))
	for _, c := range snap {
		out = append(out, c.clone())
	}
	return out
}

// Get returns the configuration for clientID or ErrNotFound.
func (r *Registry) Get(clientID string) (*ClientConfiguration, error) {
	const op = "Registry.Get"
	c, ok := r.Snapshot()[clientID]
	if !ok {
		return nil, fmt.Errorf("%s: client %q: %w", op, clientID, ErrNotFound)
	}
	out := c.clone()
	return &out, nil
}

// Upsert validates and persists a configuration, then swaps in a new
// snapshot and notifies listeners. Optional fields get their registration
// defaults before validation.
func (r *Registry) Upsert(ctx context.Context, c ClientConfiguration) error {
	const op = "Registry.Upsert"
	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Put(ctx, c); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.reload(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.logger.Info("client configuration upserted", "client_id", c.ClientID)
	r.notify()
	return nil
}

// Apply performs a partial update of an existing configuration. Absent patch
// fields are left unchanged; the patched result is re-validated before it is
// persisted.
func (r *Registry) Apply(ctx context.Context, clientID string, p Patch) (*ClientConfiguration, error) {
	const op = "Registry.Apply"
	r.mu.Lock()
	defer r.mu.Unlock()
	current, err := r.store.Get(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	patched := p.applyTo(*current)
	if err := patched.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.store.Put(ctx, patched); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.reload(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.logger.Info("client configuration patched", "client_id", clientID)
	r.notify()
	out := patched.clone()
	return &out, nil
}

// Delete removes a configuration, swaps in a new snapshot and notifies
// listeners. Returns ErrNotFound for an unknown client.
func (r *Registry) Delete(ctx context.Context, clientID string) error {
	const op = "Registry.Delete"
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Delete(ctx, clientID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.reload(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.logger.Info("client configuration deleted", "client_id", clientID)
	r.notify()
	return nil
}

// reload rebuilds the snapshot from the store. Callers other than
// NewRegistry must hold r.mu.
func (r *Registry) reload(ctx context.Context) error {
	all, err := r.store.GetAll(ctx)
	if err != nil {
		return err
	}
	snap := make(Snapshot, len(all))
	for _, c := range all {
		snap[c.ClientID] = c.clone()
	}
	r.snapshot.Store(snap)
	return nil
}

// notify runs listeners with the freshly swapped snapshot. Caller holds r.mu.
func (r *Registry) notify() {
	snap := r.Snapshot()
	for _, l := range r.listeners {
		l(snap)
	}
}
