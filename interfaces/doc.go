// Package interfaces defines core interfaces and types for the message relay
// system, separating interface definitions from implementations.
//
// The package provides the contracts for the key components of the system:
//
// # Relay Interfaces
//
// MessageRegistry: Accepts message proposals in strict nonce order, tracks the
// pending/executed lifecycle, and gates execution on attestation quorum.
//
// AttestationQuorum: Authorizes attestors, records per-message endorsements,
// derives the signature threshold from message attributes, and answers vote
// count queries.
//
// DestinationHandler: The external collaborator receiving execution envelopes;
// the registry holds an opaque handler reference per routing key.
//
// EventSink: Receives proposal, attestation, and execution lifecycle events.
//
// # Storage Interfaces
//
// StorageBackend: Provides content-addressed archive storage for proposal
// records and execution receipts across multiple backend types (file, S3,
// IPFS, Vault).
//
// StorageBackendFactory: Creates storage backends from URI strings and manages
// multi-backend configurations for redundant storage.
//
// # Core Types
//
//   - MessageID: 32-byte keccak256 identity binding message content and nonce
//   - AccountAddress: 20-byte signer or owner account address
//   - ChainKey: opaque destination routing key
//   - Message: full proposal record with frozen threshold and lifecycle state
//   - ProposalEnvelope: decoded (nonce, sender, inner payload) payload wrapper
//
// # Key Functions
//
// ComputeMessageID: Deterministic message identity over the canonical ABI
// encoding of (destinationChain, receiver, payload, attributes, nonce).
//
// EncodeAttribute/DecodeAttribute: The self-describing key/value attribute
// convention consumed by threshold derivation.
package interfaces
