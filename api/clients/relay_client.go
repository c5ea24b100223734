package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ruteri/message-relay-backend/api"
	"github.com/ruteri/message-relay-backend/interfaces"
)

// APIError is a non-200 response from the relay server. Callers can inspect
// the status code to distinguish terminal rejections from transient failures.
type APIError struct {
	Path       string
	StatusCode int
	Body       string
}

// Error returns the error message including path, status and response body.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned error %d: %s", e.Path, e.StatusCode, e.Body)
}

// RelayClient is an HTTP client for the relay API. Read and lifecycle calls
// need no credentials; admin calls require an owner key set with WithAdminKey,
// which signs the request body so the server can recover the owner address.
type RelayClient struct {
	serverAddr string
	client     *http.Client
	adminKey   *ecdsa.PrivateKey
}

// NewRelayClient creates a client against the given relay server base URL.
func NewRelayClient(serverAddr string) *RelayClient {
	return &RelayClient{
		serverAddr: serverAddr,
		client:     http.DefaultClient,
	}
}

// WithAdminKey sets the owner key used to sign admin requests.
func (c *RelayClient) WithAdminKey(key *ecdsa.PrivateKey) *RelayClient {
	c.adminKey = key
	return c
}

// WithHTTPClient overrides the underlying HTTP client.
func (c *RelayClient) WithHTTPClient(client *http.Client) *RelayClient {
	c.client = client
	return c
}

func (c *RelayClient) do(ctx context.Context, method, path string, reqBody, respBody any, admin bool) error {
	var bodyBytes []byte
	if reqBody != nil {
		var err error
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("could not encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverAddr+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if admin {
		if c.adminKey == nil {
			return errors.New("admin key not configured")
		}
		digest := crypto.Keccak256Hash(bodyBytes)
		signature, err := crypto.Sign(digest.Bytes(), c.adminKey)
		if err != nil {
			return fmt.Errorf("could not sign admin request: %w", err)
		}
		req.Header.Set(api.AdminSignatureHeader, hex.EncodeToString(signature))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBytes, _ := io.ReadAll(resp.Body)
		return &APIError{
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(respBytes)),
		}
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("could not parse %s response: %w", path, err)
		}
	}
	return nil
}

// Propose submits a message proposal and returns the deterministic message ID.
// The payload must be an encoded proposal envelope.
func (c *RelayClient) Propose(ctx context.Context, destinationChain interfaces.ChainKey, receiver string, payload []byte, attributes [][]byte) (interfaces.MessageID, error) {
	attributesHex := make([]string, 0, len(attributes))
	for _, attr := range attributes {
		attributesHex = append(attributesHex, hex.EncodeToString(attr))
	}

	var resp api.ProposeResponse
	err := c.do(ctx, http.MethodPost, "/api/relay/propose", api.ProposeRequest{
		DestinationChain: destinationChain.String(),
		Receiver:         receiver,
		Payload:          hex.EncodeToString(payload),
		Attributes:       attributesHex,
	}, &resp, false)
	if err != nil {
		return interfaces.MessageID{}, err
	}

	return interfaces.NewMessageIDFromHex(resp.MessageID)
}

// Attest submits an endorsement signature and returns the running vote count.
func (c *RelayClient) Attest(ctx context.Context, messageID interfaces.MessageID, attestor interfaces.AccountAddress, signature []byte) (int, error) {
	var resp api.AttestResponse
	err := c.do(ctx, http.MethodPost, "/api/relay/attest", api.AttestRequest{
		MessageID: messageID.String(),
		Attestor:  attestor.String(),
		Signature: hex.EncodeToString(signature),
	}, &resp, false)
	if err != nil {
		return 0, err
	}
	return resp.VoteCount, nil
}

// Execute triggers delivery of a message that has reached quorum.
func (c *RelayClient) Execute(ctx context.Context, messageID interfaces.MessageID) error {
	return c.do(ctx, http.MethodPost, "/api/relay/execute/"+messageID.String(), nil, nil, false)
}

// GetMessage fetches the stored view of a message.
func (c *RelayClient) GetMessage(ctx context.Context, messageID interfaces.MessageID) (*api.MessageResponse, error) {
	var resp api.MessageResponse
	if err := c.do(ctx, http.MethodGet, "/api/relay/message/"+messageID.String(), nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Nonce fetches the next expected proposal nonce.
func (c *RelayClient) Nonce(ctx context.Context) (uint64, error) {
	var resp api.NonceResponse
	if err := c.do(ctx, http.MethodGet, "/api/relay/nonce", nil, &resp, false); err != nil {
		return 0, err
	}
	return resp.Nonce, nil
}

// PendingMessages fetches the IDs of messages still awaiting execution.
func (c *RelayClient) PendingMessages(ctx context.Context) ([]interfaces.MessageID, error) {
	var resp api.PendingMessagesResponse
	if err := c.do(ctx, http.MethodGet, "/api/relay/messages/pending", nil, &resp, false); err != nil {
		return nil, err
	}

	ids := make([]interfaces.MessageID, 0, len(resp.MessageIDs))
	for _, idHex := range resp.MessageIDs {
		id, err := interfaces.NewMessageIDFromHex(idHex)
		if err != nil {
			return nil, fmt.Errorf("could not parse pending message id %s: %w", idHex, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// RegisterDestination registers a destination handler endpoint for a routing
// key. Requires the admin key. Leave endpoint empty to have the server
// discover it from the domain's DNS SRV record.
func (c *RelayClient) RegisterDestination(ctx context.Context, chainKey interfaces.ChainKey, endpoint, domain string) error {
	return c.do(ctx, http.MethodPost, "/api/admin/destination", api.RegisterDestinationRequest{
		ChainKey: chainKey.String(),
		Endpoint: endpoint,
		Domain:   domain,
	}, nil, true)
}

// AddAttestor adds an address to the attestor set. Requires the admin key.
func (c *RelayClient) AddAttestor(ctx context.Context, attestor interfaces.AccountAddress) error {
	return c.do(ctx, http.MethodPost, "/api/admin/attestor", api.AddAttestorRequest{
		Attestor: attestor.String(),
	}, nil, true)
}

// SetQuorum replaces the attestation quorum with one seeded with the given
// attestors. Requires the admin key.
func (c *RelayClient) SetQuorum(ctx context.Context, attestors []interfaces.AccountAddress) error {
	attestorsHex := make([]string, 0, len(attestors))
	for _, attestor := range attestors {
		attestorsHex = append(attestorsHex, attestor.String())
	}

	return c.do(ctx, http.MethodPost, "/api/admin/quorum", api.SetQuorumRequest{
		Attestors: attestorsHex,
	}, nil, true)
}
