package provider

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	jose "gopkg.in/square/go-jose.v2"
)

const (
	// DefaultKeyBits is the RSA key size used when generating a fresh
	// signing key.
	DefaultKeyBits = 2048

	// SigningAlg is the only id_token signing algorithm the provider
	// advertises.
	SigningAlg = "RS256"

	pemBlockType = "PRIVATE KEY"
)

// SigningKey is the provider's long-lived RSA signing key. It is immutable
// after EnsureSigningKey returns and safe for concurrent use.
type SigningKey struct {
	// Private is the raw RSA key.
	Private *rsa.PrivateKey

	// JWK is the private key in JWK form with use "sig" and alg RS256,
	// suitable for a go-jose signer.
	JWK jose.JSONWebKey
}

// EnsureSigningKey guarantees a usable signing key exists at path before any
// endpoint is served: an existing PEM-encoded PKCS8 key is loaded, otherwise
// a new one is generated and written exactly once with 0600 permissions, so
// subsequent startups reuse it.
// Supported options: WithLogger, WithKeyBits.
func EnsureSigningKey(path string, opt ...Option) (*SigningKey, error) {
	const op = "provider.EnsureSigningKey"
	if path == "" {
		return nil, fmt.Errorf("%s: key path is empty: %w", op, ErrInvalidParameter)
	}
	opts := getOpts(opt...)

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		opts.withLogger.Info("loading existing signing key", "path", path)
		key, err := parsePrivateKeyPEM(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: reading %s: %w", op, path, err)
		}
		return newSigningKey(key)
	case os.IsNotExist(err):
		opts.withLogger.Info("generating new signing key", "path", path, "bits", opts.withKeyBits)
		key, err := rsa.GenerateKey(rand.Reader, opts.withKeyBits)
		if err != nil {
			return nil, fmt.Errorf("%s: generating key: %s: %w", op, err.Error(), ErrKeyProvisioning)
		}
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding key: %s: %w", op, err.Error(), ErrKeyProvisioning)
		}
		encoded := pem.EncodeToMemory(&pem.Block{Type: pemBlockType, Bytes: der})
		if err := os.WriteFile(path, encoded, 0o600); err != nil {
			return nil, fmt.Errorf("%s: writing %s: %s: %w", op, path, err.Error(), ErrKeyProvisioning)
		}
		return newSigningKey(key)
	default:
		return nil, fmt.Errorf("%s: reading %s: %s: %w", op, path, err.Error(), ErrKeyProvisioning)
	}
}

func parsePrivateKeyPEM(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found: %w", ErrInvalidSigningKey)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// keys written by older deployments may be PKCS1
		if rsaKey, err1 := x509.ParsePKCS1PrivateKey(block.Bytes); err1 == nil {
			return rsaKey, nil
		}
		return nil, fmt.Errorf("parsing PKCS8 key: %s: %w", err.Error(), ErrInvalidSigningKey)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not RSA: %w", ErrInvalidSigningKey)
	}
	return rsaKey, nil
}

func newSigningKey(key *rsa.PrivateKey) (*SigningKey, error) {
	const op = "provider.newSigningKey"
	jwk := jose.JSONWebKey{
		Key:       key,
		Use:       "sig",
		Algorithm: SigningAlg,
	}
	thumb, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("%s: computing key id: %s: %w", op, err.Error(), ErrKeyProvisioning)
	}
	jwk.KeyID = base64.RawURLEncoding.EncodeToString(thumb)
	return &SigningKey{
		Private: key,
		JWK:     jwk,
	}, nil
}

// Public returns the public half of the key in JWK form.
func (k *SigningKey) Public() jose.JSONWebKey {
	return k.JWK.Public()
}

// KeySet returns the JWKS document served at the provider's jwks_uri.
func (k *SigningKey) KeySet() *jose.JSONWebKeySet {
	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{k.Public()},
	}
}
