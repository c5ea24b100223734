// Package relay implements the message registry: the sender-side half of the
// cross-chain relay consensus mechanism.
//
// The registry accepts proposals in strict nonce order. Each proposal payload
// is an envelope carrying its expected nonce, the original sender, and the
// inner payload; the envelope nonce must match the registry counter, which
// advances only on accepted proposals. The message identity is the keccak256
// hash over the canonical encoding of all message fields, so re-proposing an
// identical message is recognized and handled idempotently.
//
// The quorum threshold is derived once at proposal time through the
// AttestationQuorum and frozen on the message. Execution re-checks the vote
// count against that frozen threshold, forwards the message to the registered
// destination handler, and only marks the message executed after delivery is
// confirmed. Handler failures revert the whole operation, and a process-wide
// execution guard rejects reentrant execute calls for the duration of the
// forwarding call.
//
// Messages are never deleted and there is no expiry: a proposal that never
// reaches quorum stays pending, with its creation timestamp available for
// caller-side policy.
package relay
