package provider

import (
	"bytes"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/stretchr/testify/require"
	jose "gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// TestEngine is a local OIDC engine driven entirely by an Adapter's current
// EngineConfig: discovery, JWKS, authorization and token endpoints are all
// served off whatever configuration the adapter last installed, which makes
// end-to-end tests of the bridge much easier. The login itself is scripted:
// the claims a "verified presentation" produced are set with
// SetLoginClaims before the authorization request arrives.
type TestEngine struct {
	httpServer *httptest.Server
	caCert     string
	adapter    *Adapter

	mu         sync.Mutex
	nextClaims map[string]string
	codes      map[string]*testPendingAuth

	t *testing.T
}

type testPendingAuth struct {
	clientID    string
	redirectURI string
	nonce       string
	claims      map[string]string
}

// StartTestEngine creates a disposable TLS TestEngine bound to the adapter.
// Build the discovery document from the engine's Addr so issuer checks hold.
func StartTestEngine(t *testing.T, adapter *Adapter) *TestEngine {
	t.Helper()
	require := require.New(t)
	require.NotNil(adapter)

	e := &TestEngine{
		t:       t,
		adapter: adapter,
		codes:   map[string]*testPendingAuth{},
	}
	e.httpServer = httptest.NewUnstartedServer(e)
	e.httpServer.StartTLS()
	t.Cleanup(e.httpServer.Close)

	cert := e.httpServer.Certificate()
	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	require.NoError(err)
	e.caCert = buf.String()

	return e
}

// Addr returns the engine's base URL.
func (e *TestEngine) Addr() string { return e.httpServer.URL }

// CACert returns the pem-encoded CA certificate for the engine's HTTPS
// server.
func (e *TestEngine) CACert() string { return e.caCert }

// HTTPClient returns a client that trusts the engine's certificate.
func (e *TestEngine) HTTPClient() *http.Client { return e.httpServer.Client() }

// Stop stops the running TestEngine.
func (e *TestEngine) Stop() { e.httpServer.Close() }

// SetLoginClaims scripts the credential-derived claims the next
// authorization request will be completed with. Unset claims make the
// authorization endpoint reply access_denied.
func (e *TestEngine) SetLoginClaims(claims map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextClaims = claims
}

func (e *TestEngine) writeJSON(w http.ResponseWriter, out interface{}) {
	enc := json.NewEncoder(w)
	_ = enc.Encode(out)
}

func (e *TestEngine) writeAuthError(w http.ResponseWriter, req *http.Request, errorCode string) {
	qv := req.URL.Query()
	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)
	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (e *TestEngine) writeTokenError(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.WriteHeader(statusCode)
	e.writeJSON(w, &body)
}

// ServeHTTP implements the test engine's http.Handler.
func (e *TestEngine) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.t.Helper()

	w.Header().Set("Content-Type", "application/json")

	cfg, err := e.adapter.Current()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		e.writeJSON(w, map[string]string{"error": "engine not initialized"})
		return
	}

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		e.writeJSON(w, cfg.Discovery)

	case "/.well-known/openid-configuration/jwks":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		e.writeJSON(w, cfg.SigningKey.KeySet())

	case "/authorization":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()
		if qv.Get("response_type") != "code" {
			e.writeAuthError(w, req, "unsupported_response_type")
			return
		}
		client, ok := cfg.Clients[qv.Get("client_id")]
		if !ok {
			e.writeAuthError(w, req, "unauthorized_client")
			return
		}
		redirectURI := qv.Get("redirect_uri")
		if !testStrListContains(client.RedirectURIs, redirectURI) {
			e.writeAuthError(w, req, "invalid_request")
			return
		}
		if e.nextClaims == nil {
			e.writeAuthError(w, req, "access_denied")
			return
		}
		code, err := uuid.GenerateUUID()
		if err != nil {
			e.writeAuthError(w, req, "server_error")
			return
		}
		e.codes[code] = &testPendingAuth{
			clientID:    client.ClientID,
			redirectURI: redirectURI,
			nonce:       qv.Get("nonce"),
			claims:      e.nextClaims,
		}
		location := redirectURI +
			"?state=" + url.QueryEscape(qv.Get("state")) +
			"&code=" + url.QueryEscape(code)
		http.Redirect(w, req, location, http.StatusFound)

	case "/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if req.FormValue("grant_type") != "authorization_code" {
			e.writeTokenError(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
			return
		}
		pending, ok := e.codes[req.FormValue("code")]
		if !ok {
			e.writeTokenError(w, http.StatusUnauthorized, "invalid_grant", "unexpected auth code")
			return
		}
		client := cfg.Clients[pending.clientID]
		if !e.clientAuthenticated(req, client.ClientID, string(client.ClientSecret), string(client.TokenEndpointAuthMethod)) {
			e.writeTokenError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
			return
		}
		if req.FormValue("redirect_uri") != pending.redirectURI {
			e.writeTokenError(w, http.StatusBadRequest, "invalid_request", "redirect_uri mismatch")
			return
		}
		delete(e.codes, req.FormValue("code"))

		idToken := e.signIDToken(cfg, pending)
		accessToken, err := uuid.GenerateUUID()
		if err != nil {
			e.writeTokenError(w, http.StatusInternalServerError, "server_error", "")
			return
		}
		reply := struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int    `json:"expires_in"`
			IDToken     string `json:"id_token"`
		}{
			AccessToken: accessToken,
			TokenType:   "Bearer",
			ExpiresIn:   300,
			IDToken:     idToken,
		}
		e.writeJSON(w, &reply)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (e *TestEngine) clientAuthenticated(req *http.Request, clientID, clientSecret, method string) bool {
	switch method {
	case "client_secret_post":
		return req.FormValue("client_id") == clientID && req.FormValue("client_secret") == clientSecret
	default: // client_secret_basic
		id, secret, ok := req.BasicAuth()
		if !ok {
			// oauth2 libraries fall back to form values for some providers
			return req.FormValue("client_id") == clientID && req.FormValue("client_secret") == clientSecret
		}
		unescapedID, err := url.QueryUnescape(id)
		if err != nil {
			return false
		}
		unescapedSecret, err := url.QueryUnescape(secret)
		if err != nil {
			return false
		}
		return unescapedID == clientID && unescapedSecret == clientSecret
	}
}

func (e *TestEngine) signIDToken(cfg *EngineConfig, pending *testPendingAuth) string {
	require := require.New(e.t)

	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: cfg.SigningKey.JWK},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(err)

	now := time.Now()
	stdClaims := jwt.Claims{
		Issuer:    cfg.Discovery.Issuer,
		Subject:   cfg.Subjects.SubjectFor(pending.claims),
		Audience:  jwt.Audience{pending.clientID},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		Expiry:    jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	privateClaims := map[string]interface{}{}
	for name, v := range pending.claims {
		privateClaims[name] = v
	}
	if pending.nonce != "" {
		privateClaims["nonce"] = pending.nonce
	}

	raw, err := jwt.Signed(sig).
		Claims(stdClaims).
		Claims(privateClaims).
		CompactSerialize()
	require.NoError(err)
	return raw
}

func testStrListContains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// TestSigningKey provisions a fresh signing key under t.TempDir. A small key
// size keeps test startup fast.
func TestSigningKey(t *testing.T) *SigningKey {
	t.Helper()
	key, err := EnsureSigningKey(t.TempDir()+"/signing-key.pem", WithKeyBits(1024))
	require.NoError(t, err)
	return key
}
