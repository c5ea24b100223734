// Package storage implements the content-addressed archive for relay records.
//
// The registry archives a record when a proposal is accepted and a receipt
// after a message executes. Records are addressed by the SHA-256 hash of
// their content, so the archive is append-only and verifiable: anyone holding
// a content ID can check the fetched record against it.
//
// Backends are created from location URIs by StorageBackendFactory:
//
//   - file:///var/relay/archive - local filesystem
//   - s3://key:secret@bucket/prefix?region=us-east-1 - S3 or compatible
//   - ipfs://127.0.0.1:5001 - IPFS node API
//   - vault://vault.example.com:8200/secret/relay?token=... - Vault KV v2
//
// MultiStorageBackend aggregates several backends: stores replicate to every
// available backend, fetches fall back through them in order. Archive writes
// are best-effort; the relay state machine never depends on them.
package storage
