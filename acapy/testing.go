package acapy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAgent is a local server that mimics the subset of the ACA-Py admin API
// this package consumes, which makes writing tests much easier. Responses
// are scriptable per endpoint and received request bodies are captured for
// assertions.
type TestAgent struct {
	httpServer *httptest.Server

	mu             sync.Mutex
	expectedAPIKey string
	walletID       string
	walletKey      string
	walletToken    string

	presExID      string
	record        json.RawMessage
	revoked       map[string][]int64
	revokedOmit   map[string]bool
	publicDID     *WalletDID
	localDIDs     []WalletDID
	invitationURL string

	failStatus map[string]int

	lastCreateRequestBody []byte
	lastInvitationBody    []byte
	recordFetches         int

	t *testing.T
}

// StartTestAgent creates a disposable TestAgent.
func StartTestAgent(t *testing.T) *TestAgent {
	t.Helper()
	a := &TestAgent{
		t:           t,
		presExID:    "test-pres-ex-id",
		revoked:     map[string][]int64{},
		revokedOmit: map[string]bool{},
		failStatus:  map[string]int{},
		publicDID:   &WalletDID{DID: "did:sov:PUB123", Posture: "public"},
		localDIDs: []WalletDID{
			{DID: "did:sov:LOCAL1", Posture: "wallet_only"},
			{DID: "did:sov:LOCAL2", Posture: "wallet_only"},
		},
		invitationURL: "https://agent.test/invite?oob=eyJ0ZXN0IjoidHJ1ZSJ9",
	}
	a.httpServer = httptest.NewServer(a)
	t.Cleanup(a.httpServer.Close)
	return a
}

// Addr returns the base URL for the test agent's running webserver.
func (a *TestAgent) Addr() string { return a.httpServer.URL }

// Stop stops the running TestAgent.
func (a *TestAgent) Stop() { a.httpServer.Close() }

// SetExpectedAPIKey makes the agent require this x-api-key on every call.
func (a *TestAgent) SetExpectedAPIKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.expectedAPIKey = key
}

// SetTenant configures multitenancy: the token endpoint will exchange the
// wallet key for token, and every other endpoint requires it as a bearer.
func (a *TestAgent) SetTenant(walletID, walletKey, token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.walletID, a.walletKey, a.walletToken = walletID, walletKey, token
}

// SetPresExID configures the exchange id stamped on created requests.
func (a *TestAgent) SetPresExID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.presExID = id
}

// SetRecord configures the exchange record returned by the records endpoint.
func (a *TestAgent) SetRecord(t *testing.T, record interface{}) {
	t.Helper()
	raw, err := json.Marshal(record)
	require.NoError(t, err)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record = raw
}

// SetRevoked configures the revoked entries for a registry. An empty slice
// still renders the revoked field; use OmitRevokedField for a registry with
// no delta at all.
func (a *TestAgent) SetRevoked(revRegID string, entries []int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked[revRegID] = entries
	a.revokedOmit[revRegID] = false
}

// OmitRevokedField makes the registry's reply omit rev_reg_delta entirely.
func (a *TestAgent) OmitRevokedField(revRegID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revokedOmit[revRegID] = true
}

// SetLocalDIDs configures the wallet's local DID list.
func (a *TestAgent) SetLocalDIDs(dids []WalletDID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.localDIDs = dids
}

// SetPublicDID configures the wallet's public DID. nil simulates an agent
// with no public DID.
func (a *TestAgent) SetPublicDID(did *WalletDID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.publicDID = did
}

// FailEndpoint forces the named endpoint to reply with the given HTTP
// status. Prefixes match, so presRecordsEndpoint covers all record ids.
func (a *TestAgent) FailEndpoint(endpoint string, status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failStatus[endpoint] = status
}

// LastCreateRequestBody returns the body received by the last
// create-request call.
func (a *TestAgent) LastCreateRequestBody() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastCreateRequestBody
}

// LastInvitationBody returns the body received by the last
// create-invitation call.
func (a *TestAgent) LastInvitationBody() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastInvitationBody
}

// RecordFetches returns how many times the records endpoint was hit.
func (a *TestAgent) RecordFetches() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recordFetches
}

func (a *TestAgent) writeJSON(w http.ResponseWriter, out interface{}) {
	enc := json.NewEncoder(w)
	_ = enc.Encode(out)
}

func (a *TestAgent) authorized(req *http.Request) bool {
	if a.expectedAPIKey != "" && req.Header.Get("x-api-key") != a.expectedAPIKey {
		return false
	}
	if a.walletToken != "" && req.URL.Path != fmt.Sprintf(tenantTokenEndpoint, a.walletID) {
		if req.Header.Get("Authorization") != "Bearer "+a.walletToken {
			return false
		}
	}
	return true
}

// ServeHTTP implements the test agent's http.Handler.
func (a *TestAgent) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	for prefix, status := range a.failStatus {
		if strings.HasPrefix(req.URL.Path, prefix) {
			w.WriteHeader(status)
			a.writeJSON(w, map[string]string{"error": "forced failure"})
			return
		}
	}

	if !a.authorized(req) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case req.URL.Path == createPresReqEndpoint:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(req.Body)
		a.lastCreateRequestBody = body
		a.writeJSON(w, map[string]interface{}{
			"pres_ex_id": a.presExID,
			"thread_id":  "test-thread-id",
			"state":      "request-sent",
			"pres_request": map[string]interface{}{
				"@type": "https://didcomm.org/present-proof/2.0/request-presentation",
			},
		})

	case strings.HasPrefix(req.URL.Path, presRecordsEndpoint+"/"):
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		a.recordFetches++
		if a.record == nil {
			a.writeJSON(w, map[string]interface{}{
				"pres_ex_id": strings.TrimPrefix(req.URL.Path, presRecordsEndpoint+"/"),
				"state":      "request-sent",
			})
			return
		}
		_, _ = w.Write(a.record)

	case strings.HasPrefix(req.URL.Path, "/revocation/registry/"):
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		parts := strings.Split(req.URL.Path, "/")
		revRegID := parts[3]
		if a.revokedOmit[revRegID] {
			a.writeJSON(w, map[string]interface{}{})
			return
		}
		a.writeJSON(w, map[string]interface{}{
			"rev_reg_delta": map[string]interface{}{
				"value": map[string]interface{}{
					"revoked": a.revoked[revRegID],
				},
			},
		})

	case req.URL.Path == publicWalletDIDEndpoint:
		if a.publicDID == nil {
			a.writeJSON(w, map[string]interface{}{"result": nil})
			return
		}
		a.writeJSON(w, map[string]interface{}{"result": a.publicDID})

	case req.URL.Path == walletDIDEndpoint:
		a.writeJSON(w, map[string]interface{}{"results": a.localDIDs})

	case req.URL.Path == createInvitationEndpoint:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(req.Body)
		a.lastInvitationBody = body
		a.writeJSON(w, map[string]interface{}{
			"invi_msg_id":    "test-invi-msg-id",
			"oob_id":         "test-oob-id",
			"state":          "initial",
			"invitation_url": a.invitationURL,
			"invitation": map[string]interface{}{
				"@type": "https://didcomm.org/out-of-band/1.1/invitation",
			},
		})

	case a.walletID != "" && req.URL.Path == fmt.Sprintf(tenantTokenEndpoint, a.walletID):
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			WalletKey string `json:"wallet_key"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.WalletKey != a.walletKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		a.writeJSON(w, map[string]string{"token": a.walletToken})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// TestPresentationRecord builds a presentation-received exchange record with
// the given revealed attributes and revocation registry ids, handy for
// scripting a TestAgent or driving an orchestrator directly.
func TestPresentationRecord(t *testing.T, presExID string, revealed map[string]string, revRegIDs []string) *PresentationExchangeRecord {
	t.Helper()
	rp := &IndyRequestedProof{RevealedAttrs: map[string]IndyRevealedAttr{}}
	for name, raw := range revealed {
		rp.RevealedAttrs[name] = IndyRevealedAttr{Raw: raw, Encoded: raw}
	}
	var ids []IndyIdentifier
	for _, id := range revRegIDs {
		ids = append(ids, IndyIdentifier{
			SchemaID:  "test:2:schema:1.0",
			CredDefID: "test:3:CL:1:default",
			RevRegID:  id,
		})
	}
	rec := &PresentationExchangeRecord{
		PresExID: presExID,
		State:    "done",
		Verified: "true",
		ByFormat: &ByFormat{
			Pres: &PresFormats{
				Indy: &IndyProof{
					RequestedProof: rp,
					Identifiers:    ids,
				},
			},
		},
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	rec.Raw = raw
	return rec
}
