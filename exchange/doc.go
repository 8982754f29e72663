// exchange runs the per-login state machine that ties one OIDC authorization
// attempt to one credential-agent presentation exchange:
//
//	created -> invited -> (presented | timed_out) -> (verified | failed | revoked)
//
// Attempts are independent units of work: many can run concurrently, each
// guarded by its own mutex, with transitions strictly sequential within an
// attempt. An abandoned attempt is simply unreferenced; the agent side needs
// no cleanup.
package exchange
