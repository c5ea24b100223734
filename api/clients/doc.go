// Package clients provides HTTP clients for the relay API, used by the
// attestor daemon, the relay-client CLI, and tests.
package clients
