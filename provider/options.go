package provider

import (
	"github.com/hashicorp/go-hclog"
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
	withStrictIssuer bool
	withKeyBits      int
}

func defaults() options {
	return options{
		withLogger:  hclog.NewNullLogger(),
		withKeyBits: DefaultKeyBits,
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

// WithStrictIssuer makes a non-https issuer URL a hard configuration error
// instead of rewriting it to https. Recommended for production deployments.
func WithStrictIssuer() Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withStrictIssuer = true
		}
	}
}

// WithKeyBits provides an optional RSA key size for newly generated signing
// keys. Ignored when an existing key is loaded.
func WithKeyBits(bits int) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			if bits > 0 {
				o.withKeyBits = bits
			}
		}
	}
}
