package acapy

import (
	"net/http"

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

// options is the set of available options for the Client and the
// MultiTenant header provider.
type options struct {
	withLogger     hclog.Logger
	withHTTPClient *http.Client
	withAgentCA    string
}

func defaults() options {
	return options{
		withLogger: hclog.NewNullLogger(),
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

// WithHTTPClient provides an optional http client to use for agent requests,
// overriding the client built from WithAgentCA.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withHTTPClient = c
		}
	}
}

// WithAgentCA provides an optional CA cert PEM to trust when calling the
// agent admin API.
func WithAgentCA(pem string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withAgentCA = pem
		}
	}
}
