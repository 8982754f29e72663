// vcauthn bridges OpenID Connect logins onto verifiable-credential
// presentations. A relying party starts a normal OIDC authorization request;
// instead of prompting for a password, the controller asks a remote
// credential agent (ACA-Py) to create a presentation request, hands the end
// user an out-of-band invitation, waits for the wallet to present, checks the
// presented credential for revocation, and mints an OIDC identity keyed by a
// salted hash of the presented claims.
//
// Packages:
//
//	acapy    - REST client for the credential agent's admin API
//	provider - signing key, discovery document, subject ids, engine adapter
//	registry - dynamic relying-party client configurations
//	exchange - per-login presentation-exchange state machine
//
// See README.md
package vcauthn
