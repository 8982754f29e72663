package provider

import (
	"fmt"
	"net/url"
	"strings"
)

// DiscoveryDocument is the provider's openid-configuration document, derived
// from the issuer URL and the signing key. It is read-only once built.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`

	ResponseTypesSupported           []string `json:"response_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ResponseModesSupported           []string `json:"response_modes_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	ClaimTypesSupported              []string `json:"claim_types_supported"`
	ClaimsParameterSupported         bool     `json:"claims_parameter_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
	RequestParameterSupported        bool     `json:"request_parameter_supported"`
	RequestURIParameterSupported     bool     `json:"request_uri_parameter_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`

	FrontchannelLogoutSupported        bool `json:"frontchannel_logout_supported"`
	FrontchannelLogoutSessionSupported bool `json:"frontchannel_logout_session_supported"`
	BackchannelLogoutSupported         bool `json:"backchannel_logout_supported"`
	BackchannelLogoutSessionSupported  bool `json:"backchannel_logout_session_supported"`
}

// NewDiscoveryDocument builds the discovery document for the given issuer
// and signing key. An http issuer is rewritten to https and logged, which
// keeps local development working behind TLS-terminating proxies; pass
// WithStrictIssuer to make that a hard error instead.
// Supported options: WithLogger, WithStrictIssuer.
func NewDiscoveryDocument(issuerURL string, key *SigningKey, opt ...Option) (*DiscoveryDocument, error) {
	const op = "provider.NewDiscoveryDocument"
	if key == nil {
		return nil, fmt.Errorf("%s: signing key is nil: %w", op, ErrNilParameter)
	}
	if issuerURL == "" {
		return nil, fmt.Errorf("%s: issuer URL is empty: %w", op, ErrConfiguration)
	}
	opts := getOpts(opt...)

	u, err := url.Parse(issuerURL)
	if err != nil {
		return nil, fmt.Errorf("%s: issuer URL %s is invalid: %s: %w", op, issuerURL, err.Error(), ErrConfiguration)
	}
	if u.Scheme != "https" {
		if u.Scheme != "http" {
			return nil, fmt.Errorf("%s: issuer URL %s scheme is not http or https: %w", op, issuerURL, ErrConfiguration)
		}
		if opts.withStrictIssuer {
			return nil, fmt.Errorf("%s: issuer URL %s is not https: %w", op, issuerURL, ErrConfiguration)
		}
		opts.withLogger.Error("issuer URL is not https, rewriting for development use", "issuer", issuerURL)
		u.Scheme = "https"
	}
	issuer := strings.TrimSuffix(u.String(), "/")

	return &DiscoveryDocument{
		Issuer:                issuer,
		AuthorizationEndpoint: issuer + "/authorization",
		TokenEndpoint:         issuer + "/token",
		JWKSURI:               issuer + "/.well-known/openid-configuration/jwks",

		ResponseTypesSupported:           []string{"code", "id_token", "token"},
		IDTokenSigningAlgValuesSupported: []string{key.JWK.Algorithm},
		ResponseModesSupported:           []string{"fragment", "query", "form_post"},
		SubjectTypesSupported:            []string{"public"},
		GrantTypesSupported:              []string{"hybrid"},
		ClaimTypesSupported:              []string{"normal"},
		ClaimsParameterSupported:         true,
		ClaimsSupported:                  []string{"sub"},
		RequestParameterSupported:        true,
		RequestURIParameterSupported:     false,
		ScopesSupported:                  []string{"openid", "profile"},
		TokenEndpointAuthMethods:         []string{"client_secret_basic"},

		FrontchannelLogoutSupported:        true,
		FrontchannelLogoutSessionSupported: true,
		BackchannelLogoutSupported:         true,
		BackchannelLogoutSessionSupported:  true,
	}, nil
}
