package api

// AdminSignatureHeader carries the hex-encoded secp256k1 signature over the
// keccak256 hash of the request body. The recovered address must match the
// configured relay owner.
const AdminSignatureHeader = "X-Relay-Admin-Signature"

// ProposeRequest submits a new message proposal. Payload carries the
// hex-encoded proposal envelope (nonce, sender, inner payload); attributes are
// hex-encoded key/value encodings.
type ProposeRequest struct {
	DestinationChain string   `json:"destination_chain"`
	Receiver         string   `json:"receiver"`
	Payload          string   `json:"payload"`
	Attributes       []string `json:"attributes,omitempty"`
}

// ProposeResponse returns the deterministic identity of the proposed message.
type ProposeResponse struct {
	MessageID string `json:"message_id"`
}

// AttestRequest records an attestor's endorsement of a message. The signature
// is the hex-encoded 65-byte [R || S || V] signature over the raw message ID.
type AttestRequest struct {
	MessageID string `json:"message_id"`
	Attestor  string `json:"attestor"`
	Signature string `json:"signature"`
}

// AttestResponse returns the running distinct-vote count after the endorsement.
type AttestResponse struct {
	MessageID string `json:"message_id"`
	VoteCount int    `json:"vote_count"`
}

// ExecuteResponse confirms a completed execution.
type ExecuteResponse struct {
	MessageID string `json:"message_id"`
	State     string `json:"state"`
}

// MessageResponse is the full stored view of a message.
type MessageResponse struct {
	MessageID        string   `json:"message_id"`
	DestinationChain string   `json:"destination_chain"`
	Receiver         string   `json:"receiver"`
	Payload          string   `json:"payload"`
	Attributes       []string `json:"attributes,omitempty"`
	Nonce            uint64   `json:"nonce"`
	Sender           string   `json:"sender"`
	Threshold        int      `json:"threshold"`
	VoteCount        int      `json:"vote_count"`
	State            string   `json:"state"`
	CreatedAt        string   `json:"created_at"`
}

// NonceResponse returns the next expected proposal nonce.
type NonceResponse struct {
	Nonce uint64 `json:"nonce"`
}

// PendingMessagesResponse lists message IDs still awaiting execution.
type PendingMessagesResponse struct {
	MessageIDs []string `json:"message_ids"`
}

// RegisterDestinationRequest registers a destination handler for a routing key.
// Either Endpoint is set directly, or Domain names a DNS SRV record to resolve
// the endpoint from.
type RegisterDestinationRequest struct {
	ChainKey string `json:"chain_key"`
	Endpoint string `json:"endpoint,omitempty"`
	Domain   string `json:"domain,omitempty"`
}

// AddAttestorRequest adds an address to the attestor set.
type AddAttestorRequest struct {
	Attestor string `json:"attestor"`
}

// SetQuorumRequest replaces the attestation quorum with a fresh one seeded
// with the listed attestor addresses.
type SetQuorumRequest struct {
	Attestors []string `json:"attestors"`
}

// StatusResponse is returned by admin mutations and health endpoints.
type StatusResponse struct {
	Status string `json:"status"`
}
