// Package httputil builds the HTTP clients the agent gateway talks through:
// pooled transports with an optional pinned CA bundle and a request timeout
// backstopping the per-call context deadlines.
package httputil

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

var ErrInvalidCertificatePem = errors.New("invalid certificate PEM")

// DefaultTimeout bounds one whole admin API exchange, body read included.
// Callers layer shorter per-call deadlines on top via context.
const DefaultTimeout = 30 * time.Second

// NewClient returns a pooled client for admin API calls. When caPEM is
// non-empty its certificates replace the system roots, pinning the client to
// a private agent CA; otherwise the system chain is used.
func NewClient(caPEM string) (*http.Client, error) {
	const op = "httputil.NewClient"
	tr := cleanhttp.DefaultPooledTransport()

	if caPEM != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(caPEM)) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCertificatePem)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &http.Client{
		Transport: tr,
		Timeout:   DefaultTimeout,
	}, nil
}
