// Package attestor implements the endorsement daemon run by each member of
// the attestation quorum. The daemon polls the relay's pending worklist and
// submits a secp256k1 signature over every message ID it has not yet endorsed.
package attestor
