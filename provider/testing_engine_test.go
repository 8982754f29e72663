package provider

import (
	"context"
	"net/http"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/openauthn/vcauthn/registry"
)

// testEngineStack wires an adapter-backed engine the way the controller
// does: key, discovery off the engine's own address, registry bound for
// re-initialization.
func testEngineStack(t *testing.T) (*TestEngine, *registry.Registry, *SubjectFactory) {
	t.Helper()
	require := require.New(t)
	ctx := context.Background()

	key := TestSigningKey(t)
	subjects, err := NewSubjectFactory("test-salt")
	require.NoError(err)

	adapter := NewAdapter()
	engine := StartTestEngine(t, adapter)

	doc, err := NewDiscoveryDocument(engine.Addr(), key)
	require.NoError(err)

	reg, err := registry.NewRegistry(ctx, registry.NewMemStore())
	require.NoError(err)
	require.NoError(adapter.Initialize(key, doc, reg.Snapshot(), subjects))
	adapter.BindRegistry(reg)

	return engine, reg, subjects
}

func TestEngine_AuthorizationCodeFlow(t *testing.T) {
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)

	engine, reg, subjects := testEngineStack(t)
	require.NoError(reg.Upsert(ctx, registry.ClientConfiguration{
		ClientID:     "abc",
		ClientName:   "Test RP",
		RedirectURIs: []string{"https://rp.example/cb"},
		ClientSecret: "s3cret",
	}))

	claims := map[string]string{
		"email":      "alice@example.com",
		"first_name": "Alice",
	}
	engine.SetLoginClaims(claims)

	cctx := oidc.ClientContext(ctx, engine.HTTPClient())
	p, err := oidc.NewProvider(cctx, engine.Addr())
	require.NoError(err)

	oauthCfg := oauth2.Config{
		ClientID:     "abc",
		ClientSecret: "s3cret",
		Endpoint:     p.Endpoint(),
		RedirectURL:  "https://rp.example/cb",
		Scopes:       []string{oidc.ScopeOpenID},
	}

	// fetch the authorization redirect without following it off-host
	noRedirect := &http.Client{
		Transport: engine.HTTPClient().Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := noRedirect.Get(oauthCfg.AuthCodeURL("state-123", oidc.Nonce("nonce-456")))
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)

	loc, err := resp.Location()
	require.NoError(err)
	require.Equal("state-123", loc.Query().Get("state"))
	require.Empty(loc.Query().Get("error"))
	code := loc.Query().Get("code")
	require.NotEmpty(code)

	tok, err := oauthCfg.Exchange(cctx, code)
	require.NoError(err)
	rawIDToken, ok := tok.Extra("id_token").(string)
	require.True(ok)

	verifier := p.Verifier(&oidc.Config{ClientID: "abc"})
	idToken, err := verifier.Verify(cctx, rawIDToken)
	require.NoError(err)

	// sub is the deterministic salted hash of the presented claims
	assert.Equal(subjects.SubjectFor(claims), idToken.Subject)

	var got struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		Nonce     string `json:"nonce"`
	}
	require.NoError(idToken.Claims(&got))
	assert.Equal("alice@example.com", got.Email)
	assert.Equal("Alice", got.FirstName)
	assert.Equal("nonce-456", got.Nonce)
}

func TestEngine_AuthorizationFailures(t *testing.T) {
	ctx := context.Background()

	newNoRedirectClient := func(e *TestEngine) *http.Client {
		return &http.Client{
			Transport: e.HTTPClient().Transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	t.Run("unknown-client", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		engine, _, _ := testEngineStack(t)
		engine.SetLoginClaims(map[string]string{"email": "a@b"})

		resp, err := newNoRedirectClient(engine).Get(engine.Addr() +
			"/authorization?response_type=code&client_id=nope&redirect_uri=https%3A%2F%2Frp.example%2Fcb&state=s")
		require.NoError(err)
		defer resp.Body.Close()
		loc, err := resp.Location()
		require.NoError(err)
		assert.Equal("unauthorized_client", loc.Query().Get("error"))
	})
	t.Run("no-verified-presentation", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		engine, reg, _ := testEngineStack(t)
		require.NoError(reg.Upsert(ctx, registry.ClientConfiguration{
			ClientID:     "abc",
			RedirectURIs: []string{"https://rp.example/cb"},
			ClientSecret: "s3cret",
		}))

		resp, err := newNoRedirectClient(engine).Get(engine.Addr() +
			"/authorization?response_type=code&client_id=abc&redirect_uri=https%3A%2F%2Frp.example%2Fcb&state=s")
		require.NoError(err)
		defer resp.Body.Close()
		loc, err := resp.Location()
		require.NoError(err)
		assert.Equal("access_denied", loc.Query().Get("error"))
	})
	t.Run("uninitialized-adapter", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		engine := StartTestEngine(t, NewAdapter())
		resp, err := engine.HTTPClient().Get(engine.Addr() + "/.well-known/openid-configuration")
		require.NoError(err)
		defer resp.Body.Close()
		assert.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	})
}
