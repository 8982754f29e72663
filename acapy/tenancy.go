package acapy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/openauthn/vcauthn/internal/httputil"
)

const tenantTokenEndpoint = "/multitenancy/wallet/%s/token"

// HeaderProvider supplies the authentication headers for agent admin calls.
// The provider is selected once when the Client is constructed; single- and
// multi-tenant agent deployments authenticate differently.
type HeaderProvider interface {
	Headers(ctx context.Context) (map[string]string, error)
}

// SingleTenant authenticates against a standalone agent with the admin API
// key. An empty key is permitted for agents started with an unsecured admin
// endpoint.
type SingleTenant struct {
	// APIKey is the agent's admin API key, sent as x-api-key.
	APIKey string
}

// Headers implements HeaderProvider.
func (s SingleTenant) Headers(_ context.Context) (map[string]string, error) {
	if s.APIKey == "" {
		return map[string]string{}, nil
	}
	return map[string]string{"x-api-key": s.APIKey}, nil
}

// MultiTenant authenticates against a multi-tenant agent by exchanging the
// wallet key for a bearer token on first use and caching it for the
// provider's lifetime.
type MultiTenant struct {
	adminURL  string
	walletID  string
	walletKey string
	client    *http.Client

	mu    sync.Mutex
	token string
}

// NewMultiTenant creates a HeaderProvider for a tenant wallet on a
// multi-tenant agent. Supported options: WithHTTPClient, WithAgentCA.
func NewMultiTenant(adminURL, walletID, walletKey string, opt ...Option) (*MultiTenant, error) {
	const op = "acapy.NewMultiTenant"
	if adminURL == "" {
		return nil, fmt.Errorf("%s: admin URL is empty: %w", op, ErrInvalidParameter)
	}
	if walletID == "" {
		return nil, fmt.Errorf("%s: wallet id is empty: %w", op, ErrInvalidParameter)
	}
	if walletKey == "" {
		return nil, fmt.Errorf("%s: wallet key is empty: %w", op, ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	client := opts.withHTTPClient
	if client == nil {
		var err error
		client, err = httputil.NewClient(opts.withAgentCA)
		if err != nil {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
	}
	return &MultiTenant{
		adminURL:  adminURL,
		walletID:  walletID,
		walletKey: walletKey,
		client:    client,
	}, nil
}

// Headers implements HeaderProvider. The wallet token is fetched lazily and
// reused; a fresh provider picks up a fresh token.
func (m *MultiTenant) Headers(ctx context.Context) (map[string]string, error) {
	const op = "MultiTenant.Headers"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		token, err := m.fetchToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		m.token = token
	}
	return map[string]string{"Authorization": "Bearer " + m.token}, nil
}

func (m *MultiTenant) fetchToken(ctx context.Context) (string, error) {
	const op = "MultiTenant.fetchToken"
	body, err := json.Marshal(map[string]string{"wallet_key": m.walletKey})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	url := m.adminURL + fmt.Sprintf(tenantTokenEndpoint, m.walletID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w", op, err.Error(), ErrTenantTokenFailed)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w", op, err.Error(), ErrTenantTokenFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%s: agent returned %d: %w", op, resp.StatusCode, ErrTenantTokenFailed)
	}
	var reply tokenReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("%s: %s: %w", op, err.Error(), ErrTenantTokenFailed)
	}
	if reply.Token == "" {
		return "", fmt.Errorf("%s: empty token in reply: %w", op, ErrTenantTokenFailed)
	}
	return reply.Token, nil
}
