// registry holds the relying-party client configurations the OIDC provider
// consults on every authorization request. Configurations live in a pluggable
// Store; readers work off an immutable snapshot that is swapped atomically
// after every successful mutation, so a concurrent request sees either the
// old or the new registry but never a partial one.
package registry
