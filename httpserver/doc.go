// Package httpserver exposes the message relay over HTTP.
//
// The public API covers the full message lifecycle: proposal, attestation,
// execution, and read access to stored messages, the pending worklist and the
// nonce counter. The admin API mutates routing and quorum configuration and is
// gated by a signature header that must recover to the configured owner
// address, so possession of the owner key is the only admin credential.
//
// The server follows the usual service shape: chi routing, request logging
// middleware, liveness/readiness/drain endpoints for load balancer
// coordination, an optional pprof mount, a Prometheus metrics listener, and
// graceful shutdown.
package httpserver
