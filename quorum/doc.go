// Package quorum implements the attestation quorum: a fixed, add-only set of
// authorized signer addresses, per-message endorsement records with
// duplicate-vote rejection, and attribute-driven threshold derivation.
//
// Endorsements are secp256k1 signatures over the raw 32-byte message ID
// digest. The recovered signer must equal the claimed attestor, so an
// attestor can only ever endorse as itself.
//
// Threshold policy lives here rather than in the message registry: the quorum
// is the authority on how much agreement is enough. The registry derives the
// threshold once at proposal time and freezes it, preventing attribute
// tampering from changing security requirements after votes accumulate.
package quorum
