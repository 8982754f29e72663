package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RedactedSalt is the redacted string or json for the subject salt.
const RedactedSalt = "[REDACTED: subject salt]"

// Salt is the deployment secret mixed into every subject identifier.
// Different deployments must use different salts so subjects never collide
// across them.
type Salt string

// String will redact the salt.
func (s Salt) String() string {
	return RedactedSalt
}

// MarshalJSON will redact the salt.
func (s Salt) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedSalt)
}

// SubjectFactory derives the stable OIDC sub for a verified presentation: a
// hex SHA-256 over the salt and the canonical form of the presented claims.
// The same claims and salt always produce the same subject, across calls and
// across process restarts.
type SubjectFactory struct {
	salt Salt
}

// NewSubjectFactory creates a SubjectFactory with the given salt.
func NewSubjectFactory(salt Salt) (*SubjectFactory, error) {
	const op = "provider.NewSubjectFactory"
	if salt == "" {
		return nil, fmt.Errorf("%s: salt is empty: %w", op, ErrInvalidParameter)
	}
	return &SubjectFactory{salt: salt}, nil
}

// SubjectFor computes the subject identifier for a set of credential-derived
// claims.
func (f *SubjectFactory) SubjectFor(claims map[string]string) string {
	names := make([]string, 0, len(claims))
	for name := range claims {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(string(f.salt))
	for _, name := range names {
		// length-prefixed so no two claim sets share a canonical form
		fmt.Fprintf(&b, "|%d:%s=%d:%s", len(name), name, len(claims[name]), claims[name])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
