// acapy is a client for the subset of the ACA-Py admin API the controller
// needs: creating present-proof 2.0 requests, fetching exchange records,
// checking revocation registries, reading wallet DIDs and creating
// out-of-band invitations. The client is stateless; tenancy credentials come
// from a HeaderProvider chosen once at construction.
package acapy
