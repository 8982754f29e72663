package acapy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProofRequest = json.RawMessage(`{"name":"proof-request","version":"1.0","requested_attributes":{"attr_email":{"name":"email"}}}`)

func testClient(t *testing.T, a *TestAgent) *Client {
	t.Helper()
	c, err := NewClient(&Config{
		AdminURL:        a.Addr(),
		InvitationLabel: "vc-authn",
		Headers:         SingleTenant{},
	})
	require.NoError(t, err)
	return c
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		config    *Config
		wantIsErr error
	}{
		{
			name:      "nil-config",
			config:    nil,
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "empty-admin-url",
			config:    &Config{Headers: SingleTenant{}},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "bad-scheme",
			config:    &Config{AdminURL: "ftp://agent.test", Headers: SingleTenant{}},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "nil-header-provider",
			config:    &Config{AdminURL: "http://agent.test"},
			wantIsErr: ErrNilParameter,
		},
		{
			name:   "valid",
			config: &Config{AdminURL: "http://agent.test", Headers: SingleTenant{APIKey: "k"}},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if tt.wantIsErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantIsErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClient_CreatePresentationRequest(t *testing.T) {
	ctx := context.Background()
	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		agent := StartTestAgent(t)
		agent.SetPresExID("pres-ex-42")
		client := testClient(t, agent)

		rec, err := client.CreatePresentationRequest(ctx, testProofRequest)
		require.NoError(err)
		assert.Equal("pres-ex-42", rec.PresExID)
		assert.NotEmpty(rec.Raw)

		// the proof request must be wrapped as an indy presentation_request
		var sent map[string]map[string]json.RawMessage
		require.NoError(json.Unmarshal(agent.LastCreateRequestBody(), &sent))
		assert.JSONEq(string(testProofRequest), string(sent["presentation_request"]["indy"]))
	})
	t.Run("empty-proof-request", func(t *testing.T) {
		agent := StartTestAgent(t)
		client := testClient(t, agent)
		_, err := client.CreatePresentationRequest(ctx, nil)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("agent-error-status", func(t *testing.T) {
		agent := StartTestAgent(t)
		agent.FailEndpoint(createPresReqEndpoint, http.StatusInternalServerError)
		client := testClient(t, agent)
		rec, err := client.CreatePresentationRequest(ctx, testProofRequest)
		assert.ErrorIs(t, err, ErrAgentUnavailable)
		assert.Nil(t, rec)
	})
	t.Run("malformed-proof-request", func(t *testing.T) {
		agent := StartTestAgent(t)
		client := testClient(t, agent)
		_, err := client.CreatePresentationRequest(ctx, json.RawMessage(`{"name": "unterminated`))
		assert.ErrorIs(t, err, ErrInvalidProofFormat)
	})
}

// TestClient_UndecodableReply pins the split between an unreachable agent
// (ErrAgentUnavailable) and an agent that answers 2xx with a body the client
// cannot decode (ErrInvalidAgentReply).
func TestClient_UndecodableReply(t *testing.T) {
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("].not json.["))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{
		AdminURL: srv.URL,
		Headers:  SingleTenant{},
	})
	require.NoError(err)

	_, err = client.CreatePresentationRequest(ctx, testProofRequest)
	assert.ErrorIs(err, ErrInvalidAgentReply)
	assert.NotErrorIs(err, ErrAgentUnavailable)

	_, err = client.GetPresentationRecord(ctx, "pres-ex-1")
	assert.ErrorIs(err, ErrInvalidAgentReply)

	_, err = client.IsRevoked(ctx, "reg-1")
	assert.ErrorIs(err, ErrInvalidAgentReply)

	_, err = client.GetWalletDID(ctx, true)
	assert.ErrorIs(err, ErrInvalidAgentReply)

	rec := TestPresentationRecord(t, "pres-ex-1", nil, nil)
	_, err = client.CreateInvitation(ctx, rec, false)
	assert.ErrorIs(err, ErrInvalidAgentReply)
}

func TestClient_GetPresentationRecord(t *testing.T) {
	ctx := context.Background()
	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		agent := StartTestAgent(t)
		agent.SetRecord(t, TestPresentationRecord(t, "pres-ex-7", map[string]string{"attr_email": "alice@example.com"}, nil))
		client := testClient(t, agent)

		rec, err := client.GetPresentationRecord(ctx, "pres-ex-7")
		require.NoError(err)
		assert.Equal("pres-ex-7", rec.PresExID)
		assert.Equal("done", rec.State)
		assert.Equal(map[string]string{"attr_email": "alice@example.com"}, rec.RevealedClaims())
	})
	t.Run("empty-id", func(t *testing.T) {
		agent := StartTestAgent(t)
		client := testClient(t, agent)
		_, err := client.GetPresentationRecord(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("agent-error-status", func(t *testing.T) {
		agent := StartTestAgent(t)
		agent.FailEndpoint(presRecordsEndpoint, http.StatusBadGateway)
		client := testClient(t, agent)
		rec, err := client.GetPresentationRecord(ctx, "pres-ex-7")
		assert.ErrorIs(t, err, ErrAgentUnavailable)
		assert.Nil(t, rec)
	})
}

func TestClient_IsRevoked(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		setup     func(*TestAgent)
		revRegID  string
		want      bool
		wantIsErr error
	}{
		{
			name:     "revoked-entries-present",
			setup:    func(a *TestAgent) { a.SetRevoked("reg-1", []int64{1, 4}) },
			revRegID: "reg-1",
			want:     true,
		},
		{
			name:     "empty-revoked-list",
			setup:    func(a *TestAgent) { a.SetRevoked("reg-1", []int64{}) },
			revRegID: "reg-1",
			want:     false,
		},
		{
			// nothing revoked yet: the agent omits the whole delta
			name:     "missing-revoked-field",
			setup:    func(a *TestAgent) { a.OmitRevokedField("reg-1") },
			revRegID: "reg-1",
			want:     false,
		},
		{
			name:      "empty-registry-id",
			setup:     func(a *TestAgent) {},
			revRegID:  "",
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "agent-error-status",
			setup:     func(a *TestAgent) { a.FailEndpoint("/revocation/registry/", http.StatusInternalServerError) },
			revRegID:  "reg-1",
			wantIsErr: ErrAgentUnavailable,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			agent := StartTestAgent(t)
			tt.setup(agent)
			client := testClient(t, agent)
			got, err := client.IsRevoked(ctx, tt.revRegID)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestClient_GetWalletDID(t *testing.T) {
	ctx := context.Background()
	t.Run("public", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		agent := StartTestAgent(t)
		agent.SetPublicDID(&WalletDID{DID: "did:sov:PUBLICDID", Posture: "public"})
		client := testClient(t, agent)
		did, err := client.GetWalletDID(ctx, true)
		require.NoError(err)
		assert.Equal("did:sov:PUBLICDID", did.DID)
	})
	t.Run("no-public-did", func(t *testing.T) {
		agent := StartTestAgent(t)
		agent.SetPublicDID(nil)
		client := testClient(t, agent)
		_, err := client.GetWalletDID(ctx, true)
		assert.ErrorIs(t, err, ErrMissingWalletDID)
	})
	t.Run("local-takes-first", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		agent := StartTestAgent(t)
		agent.SetLocalDIDs([]WalletDID{{DID: "did:sov:FIRST"}, {DID: "did:sov:SECOND"}})
		client := testClient(t, agent)
		did, err := client.GetWalletDID(ctx, false)
		require.NoError(err)
		assert.Equal("did:sov:FIRST", did.DID)
	})
	t.Run("local-empty-list", func(t *testing.T) {
		agent := StartTestAgent(t)
		agent.SetLocalDIDs(nil)
		client := testClient(t, agent)
		_, err := client.GetWalletDID(ctx, false)
		assert.ErrorIs(t, err, ErrMissingWalletDID)
	})
	t.Run("agent-error-status", func(t *testing.T) {
		agent := StartTestAgent(t)
		agent.FailEndpoint(walletDIDEndpoint, http.StatusServiceUnavailable)
		client := testClient(t, agent)
		_, err := client.GetWalletDID(ctx, false)
		assert.ErrorIs(t, err, ErrAgentUnavailable)
	})
}

func TestClient_CreateInvitation(t *testing.T) {
	ctx := context.Background()
	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		agent := StartTestAgent(t)
		client := testClient(t, agent)

		rec, err := client.CreatePresentationRequest(ctx, testProofRequest)
		require.NoError(err)
		inv, err := client.CreateInvitation(ctx, rec, true)
		require.NoError(err)
		assert.NotEmpty(inv.InvitationURL)

		var sent struct {
			Attachments []struct {
				ID   string `json:"id"`
				Type string `json:"type"`
				Data struct {
					JSON json.RawMessage `json:"json"`
				} `json:"data"`
			} `json:"attachments"`
			UsePublicDID bool   `json:"use_public_did"`
			MyLabel      string `json:"my_label"`
		}
		require.NoError(json.Unmarshal(agent.LastInvitationBody(), &sent))
		require.Len(sent.Attachments, 1)
		assert.Equal(rec.PresExID, sent.Attachments[0].ID)
		assert.Equal("present-proof", sent.Attachments[0].Type)
		assert.JSONEq(string(rec.Raw), string(sent.Attachments[0].Data.JSON))
		assert.True(sent.UsePublicDID)
		assert.Equal("vc-authn", sent.MyLabel)
	})
	t.Run("nil-record", func(t *testing.T) {
		agent := StartTestAgent(t)
		client := testClient(t, agent)
		_, err := client.CreateInvitation(ctx, nil, false)
		assert.ErrorIs(t, err, ErrNilParameter)
	})
	t.Run("agent-error-status", func(t *testing.T) {
		agent := StartTestAgent(t)
		agent.FailEndpoint(createInvitationEndpoint, http.StatusInternalServerError)
		client := testClient(t, agent)
		rec := TestPresentationRecord(t, "pres-ex-9", nil, nil)
		_, err := client.CreateInvitation(ctx, rec, false)
		assert.ErrorIs(t, err, ErrAgentUnavailable)
	})
}

func TestPresentationExchangeRecord_RevocationRegistryIDs(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	rec := TestPresentationRecord(t, "x", nil, []string{"reg-a", "reg-b", "reg-a"})
	assert.Equal([]string{"reg-a", "reg-b"}, rec.RevocationRegistryIDs())

	noRev := TestPresentationRecord(t, "x", nil, nil)
	assert.Nil(noRev.RevocationRegistryIDs())

	var nilRec *PresentationExchangeRecord
	assert.Nil(nilRec.RevocationRegistryIDs())
	assert.Nil(nilRec.RevealedClaims())
}
