// provider owns what must exist before any OIDC endpoint can be served: the
// process-wide RSA signing key, the discovery document derived from it and
// the issuer URL, the salted subject-identifier factory, and the Adapter
// that hands all of it (plus the current client registry snapshot) to the
// OIDC engine as one atomically swapped configuration.
package provider
