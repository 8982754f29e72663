package registry

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// TokenEndpointAuthMethod is how a relying party authenticates to the token
// endpoint.
type TokenEndpointAuthMethod string

const (
	ClientSecretBasic TokenEndpointAuthMethod = "client_secret_basic"
	ClientSecretPost  TokenEndpointAuthMethod = "client_secret_post"
)

// Valid reports whether m is a supported auth method.
func (m TokenEndpointAuthMethod) Valid() bool {
	switch m {
	case ClientSecretBasic, ClientSecretPost:
		return true
	}
	return false
}

// ClientSecret is a relying party's secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for a client secret.
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret.
func (s ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret.
func (s ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// ClientConfiguration is one registered relying party.
type ClientConfiguration struct {
	// ClientID uniquely identifies the relying party across the registry.
	ClientID string `json:"client_id"`

	// ClientName is the relying party's display name.
	ClientName string `json:"client_name"`

	// ResponseTypes the relying party may request. Defaults to
	// code, id_token and token when left empty on upsert.
	ResponseTypes []string `json:"response_types"`

	// RedirectURIs the relying party may be sent back to. Must be non-empty.
	RedirectURIs []string `json:"redirect_uris"`

	// TokenEndpointAuthMethod defaults to client_secret_basic on upsert.
	TokenEndpointAuthMethod TokenEndpointAuthMethod `json:"token_endpoint_auth_method"`

	ClientSecret ClientSecret `json:"client_secret"`
}

// defaultResponseTypes mirrors what relying parties were registered with
// historically when they omitted the field.
func defaultResponseTypes() []string {
	return []string{"code", "id_token", "token"}
}

// withDefaults returns a copy of c with empty optional fields filled in.
func (c ClientConfiguration) withDefaults() ClientConfiguration {
	out := c.clone()
	if len(out.ResponseTypes) == 0 {
		out.ResponseTypes = defaultResponseTypes()
	}
	if out.TokenEndpointAuthMethod == "" {
		out.TokenEndpointAuthMethod = ClientSecretBasic
	}
	return out
}

// Validate checks the configuration at the registry boundary. All field
// violations are reported together.
func (c *ClientConfiguration) Validate() error {
	const op = "registry.Validate"
	if c == nil {
		return fmt.Errorf("%s: client configuration is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	switch {
	case c.ClientID == "":
		result = multierror.Append(result, fmt.Errorf("client id is empty: %w", ErrInvalidParameter))
	case strings.ContainsAny(c.ClientID, " \t\r\n"):
		result = multierror.Append(result, fmt.Errorf("client id %q contains whitespace: %w", c.ClientID, ErrInvalidParameter))
	}
	if len(c.RedirectURIs) == 0 {
		result = multierror.Append(result, fmt.Errorf("redirect URIs are empty: %w", ErrInvalidParameter))
	}
	for _, raw := range c.RedirectURIs {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			result = multierror.Append(result, fmt.Errorf("redirect URI %q is not an absolute URL: %w", raw, ErrInvalidParameter))
		}
	}
	if !c.TokenEndpointAuthMethod.Valid() {
		result = multierror.Append(result, fmt.Errorf("unsupported token endpoint auth method %q: %w", c.TokenEndpointAuthMethod, ErrInvalidParameter))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// clone deep-copies the configuration so registry snapshots never alias
// caller-held slices.
func (c ClientConfiguration) clone() ClientConfiguration {
	out := c
	if c.ResponseTypes != nil {
		out.ResponseTypes = append([]string(nil), c.ResponseTypes...)
	}
	if c.RedirectURIs != nil {
		out.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	}
	return out
}

// Patch is a partial update of a ClientConfiguration. Nil fields are left
// unchanged; the client id itself cannot be patched.
type Patch struct {
	ClientName              *string                  `json:"client_name,omitempty"`
	ResponseTypes           []string                 `json:"response_types,omitempty"`
	RedirectURIs            []string                 `json:"redirect_uris,omitempty"`
	TokenEndpointAuthMethod *TokenEndpointAuthMethod `json:"token_endpoint_auth_method,omitempty"`
	ClientSecret            *ClientSecret            `json:"client_secret,omitempty"`
}

// applyTo returns a copy of c with the patch's non-nil fields applied.
func (p Patch) applyTo(c ClientConfiguration) ClientConfiguration {
	out := c.clone()
	if p.ClientName != nil {
		out.ClientName = *p.ClientName
	}
	if p.ResponseTypes != nil {
		out.ResponseTypes = append([]string(nil), p.ResponseTypes...)
	}
	if p.RedirectURIs != nil {
		out.RedirectURIs = append([]string(nil), p.RedirectURIs...)
	}
	if p.TokenEndpointAuthMethod != nil {
		out.TokenEndpointAuthMethod = *p.TokenEndpointAuthMethod
	}
	if p.ClientSecret != nil {
		out.ClientSecret = *p.ClientSecret
	}
	return out
}
