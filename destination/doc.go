// Package destination provides destination handler implementations consumed
// by the message registry's forwarding step.
//
// HTTPDestination posts execution envelopes to a registered endpoint and
// treats any transport error or non-2xx response as a delivery failure, which
// the registry surfaces as a retryable ErrDeliveryFailed.
//
// Resolver discovers handler endpoints through DNS SRV records so operators
// can register destinations by domain instead of a hardcoded URL.
//
// MockDestination is a scriptable recording handler for tests.
package destination
