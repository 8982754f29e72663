package exchange

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultDeadline bounds how long an attempt waits for a presentation.
	DefaultDeadline = 5 * time.Minute

	// DefaultPollInterval is how often Poll re-fetches the exchange record.
	DefaultPollInterval = 2 * time.Second

	// DefaultCallTimeout bounds each individual agent call, separately from
	// the attempt deadline.
	DefaultCallTimeout = 10 * time.Second
)

// Option defines a common functional options type
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		o(opts)
	}
}

type options struct {
	withLogger       hclog.Logger
	withPublicDID    bool
	withDeadline     time.Duration
	withPollInterval time.Duration
	withCallTimeout  time.Duration
}

func defaults() options {
	return options{
		withLogger:       hclog.NewNullLogger(),
		withDeadline:     DefaultDeadline,
		withPollInterval: DefaultPollInterval,
		withCallTimeout:  DefaultCallTimeout,
	}
}

func getOpts(opt ...Option) options {
	opts := defaults()
	ApplyOpts(&opts, opt...)
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

// WithPublicDID makes invitations use the agent's public DID.
func WithPublicDID(use bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withPublicDID = use
		}
	}
}

// WithDeadline provides an optional attempt-level deadline for a
// presentation to arrive.
func WithDeadline(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			if d > 0 {
				o.withDeadline = d
			}
		}
	}
}

// WithPollInterval provides an optional interval between record fetches in
// Poll.
func WithPollInterval(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			if d > 0 {
				o.withPollInterval = d
			}
		}
	}
}

// WithCallTimeout provides an optional per-call timeout for agent calls,
// distinct from the attempt deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			if d > 0 {
				o.withCallTimeout = d
			}
		}
	}
}
