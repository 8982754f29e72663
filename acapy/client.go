package acapy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-hclog"
	"github.com/openauthn/vcauthn/internal/httputil"
)

// Admin API endpoints consumed by the controller.
const (
	walletDIDEndpoint        = "/wallet/did"
	publicWalletDIDEndpoint  = "/wallet/did/public"
	createPresReqEndpoint    = "/present-proof-2.0/create-request"
	presRecordsEndpoint      = "/present-proof-2.0/records"
	revocationEndpointFmt    = "/revocation/registry/%s/issued/indy_recs"
	createInvitationEndpoint = "/out-of-band/create-invitation"
)

// Config is the configuration for an agent admin API client.
type Config struct {
	// AdminURL is the base URL of the agent's admin API.
	AdminURL string

	// InvitationLabel is the my_label value stamped on out-of-band
	// invitations.
	InvitationLabel string

	// Headers supplies tenancy-specific authentication headers for every
	// admin call.
	Headers HeaderProvider
}

// Validate the client configuration.
func (c *Config) Validate() error {
	const op = "acapy.Validate"
	if c == nil {
		return fmt.Errorf("%s: client config is nil: %w", op, ErrNilParameter)
	}
	if c.AdminURL == "" {
		return fmt.Errorf("%s: admin URL is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(c.AdminURL)
	if err != nil {
		return fmt.Errorf("%s: admin URL %s is invalid: %w", op, c.AdminURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: admin URL %s scheme is not http or https: %w", op, c.AdminURL, ErrInvalidParameter)
	}
	if c.Headers == nil {
		return fmt.Errorf("%s: header provider is nil: %w", op, ErrNilParameter)
	}
	return nil
}

// Client is a stateless client for the agent admin API. All methods issue a
// single blocking HTTP call; callers apply per-call timeouts via ctx.
type Client struct {
	config *Config
	client *http.Client
	logger hclog.Logger
}

// NewClient creates a Client for the configured agent.
// Supported options: WithLogger, WithHTTPClient, WithAgentCA.
func NewClient(c *Config, opt ...Option) (*Client, error) {
	const op = "acapy.NewClient"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid client config: %w", op, err)
	}
	opts := getOpts(opt...)
	httpClient := opts.withHTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = httputil.NewClient(opts.withAgentCA)
		if err != nil {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
	}
	return &Client{
		config: c,
		client: httpClient,
		logger: opts.withLogger,
	}, nil
}

// CreatePresentationRequest asks the agent to create a present-proof 2.0
// exchange for the given Indy proof-request configuration and returns the
// new exchange record.
func (c *Client) CreatePresentationRequest(ctx context.Context, proofRequest json.RawMessage) (*PresentationExchangeRecord, error) {
	const op = "Client.CreatePresentationRequest"
	if len(proofRequest) == 0 {
		return nil, fmt.Errorf("%s: proof request is empty: %w", op, ErrInvalidParameter)
	}
	if !json.Valid(proofRequest) {
		return nil, fmt.Errorf("%s: proof request is not valid JSON: %w", op, ErrInvalidProofFormat)
	}
	payload := map[string]interface{}{
		"presentation_request": map[string]json.RawMessage{
			"indy": proofRequest,
		},
	}
	raw, err := c.post(ctx, createPresReqEndpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var rec PresentationExchangeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%s: undecodable create-request reply: %w", op, ErrInvalidAgentReply)
	}
	if rec.PresExID == "" {
		return nil, fmt.Errorf("%s: reply is missing pres_ex_id: %w", op, ErrInvalidAgentReply)
	}
	rec.Raw = raw
	c.logger.Debug("created presentation request", "pres_ex_id", rec.PresExID)
	return &rec, nil
}

// GetPresentationRecord fetches the current exchange record. The caller
// interprets the record's state; this call only translates it.
func (c *Client) GetPresentationRecord(ctx context.Context, presExID string) (*PresentationExchangeRecord, error) {
	const op = "Client.GetPresentationRecord"
	if presExID == "" {
		return nil, fmt.Errorf("%s: exchange id is empty: %w", op, ErrInvalidParameter)
	}
	raw, err := c.get(ctx, presRecordsEndpoint+"/"+url.PathEscape(presExID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var rec PresentationExchangeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%s: undecodable record reply: %w", op, ErrInvalidAgentReply)
	}
	rec.Raw = raw
	return &rec, nil
}

// IsRevoked reports whether the given revocation registry lists any revoked
// credentials. A reply without a revoked field means nothing has been
// revoked yet and reports false; see the registry's issued/indy_recs
// contract.
func (c *Client) IsRevoked(ctx context.Context, revRegID string) (bool, error) {
	const op = "Client.IsRevoked"
	if revRegID == "" {
		return false, fmt.Errorf("%s: revocation registry id is empty: %w", op, ErrInvalidParameter)
	}
	raw, err := c.get(ctx, fmt.Sprintf(revocationEndpointFmt, url.PathEscape(revRegID)))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	var reply revocationReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return false, fmt.Errorf("%s: undecodable revocation reply: %w", op, ErrInvalidAgentReply)
	}
	revoked := len(reply.RevRegDelta.Value.Revoked) > 0
	c.logger.Debug("checked revocation registry", "rev_reg_id", revRegID, "revoked", revoked)
	return revoked, nil
}

// GetWalletDID returns the agent's public DID when public is true, otherwise
// the first DID in the agent's local wallet.
func (c *Client) GetWalletDID(ctx context.Context, public bool) (*WalletDID, error) {
	const op = "Client.GetWalletDID"
	endpoint := walletDIDEndpoint
	if public {
		endpoint = publicWalletDIDEndpoint
	}
	raw, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if public {
		var reply walletDIDReply
		if err := json.Unmarshal(raw, &reply); err != nil {
			return nil, fmt.Errorf("%s: undecodable wallet DID reply: %w", op, ErrInvalidAgentReply)
		}
		if reply.Result == nil || reply.Result.DID == "" {
			return nil, fmt.Errorf("%s: agent has no public DID: %w", op, ErrMissingWalletDID)
		}
		return reply.Result, nil
	}
	var reply walletDIDListReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("%s: undecodable wallet DID reply: %w", op, ErrInvalidAgentReply)
	}
	if len(reply.Results) == 0 {
		return nil, fmt.Errorf("%s: wallet has no DIDs: %w", op, ErrMissingWalletDID)
	}
	// first wallet DID is the operative contract
	return &reply.Results[0], nil
}

// CreateInvitation packages the exchange as a present-proof attachment on a
// new out-of-band invitation.
func (c *Client) CreateInvitation(ctx context.Context, rec *PresentationExchangeRecord, usePublicDID bool) (*Invitation, error) {
	const op = "Client.CreateInvitation"
	if rec == nil {
		return nil, fmt.Errorf("%s: exchange record is nil: %w", op, ErrNilParameter)
	}
	if rec.PresExID == "" {
		return nil, fmt.Errorf("%s: exchange id is empty: %w", op, ErrInvalidParameter)
	}
	attached := rec.Raw
	if len(attached) == 0 {
		var err error
		attached, err = json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	payload := map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"id":   rec.PresExID,
				"type": "present-proof",
				"data": map[string]json.RawMessage{"json": attached},
			},
		},
		"use_public_did": usePublicDID,
		"my_label":       c.config.InvitationLabel,
	}
	raw, err := c.post(ctx, createInvitationEndpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var inv Invitation
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("%s: undecodable invitation reply: %w", op, ErrInvalidAgentReply)
	}
	if inv.InvitationURL == "" {
		return nil, fmt.Errorf("%s: reply is missing invitation_url: %w", op, ErrInvalidInvitation)
	}
	c.logger.Debug("created out-of-band invitation", "pres_ex_id", rec.PresExID, "invi_msg_id", inv.InviMsgID)
	return &inv, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, body interface{}) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, endpoint, body)
}

// do issues one admin API call. Any non-2xx status or transport failure
// reports ErrAgentUnavailable; callers report a 2xx body they cannot decode
// as ErrInvalidAgentReply. There is no retry at this layer.
func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}) (json.RawMessage, error) {
	const op = "Client.do"
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.AdminURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	headers, err := c.config.Headers.Headers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, err.Error(), ErrAgentUnavailable)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %s %s: %s: %w", op, method, endpoint, err.Error(), ErrAgentUnavailable)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %s %s: %s: %w", op, method, endpoint, err.Error(), ErrAgentUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("agent call failed", "method", method, "endpoint", endpoint, "status", resp.StatusCode)
		return nil, fmt.Errorf("%s: %s %s: agent returned %d: %w", op, method, endpoint, resp.StatusCode, ErrAgentUnavailable)
	}
	return raw, nil
}
