package httpserver

import (
	"context"
	"crypto/ecdsa"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/message-relay-backend/api/clients"
	"github.com/ruteri/message-relay-backend/destination"
	"github.com/ruteri/message-relay-backend/interfaces"
	"github.com/ruteri/message-relay-backend/keymanager"
	"github.com/ruteri/message-relay-backend/quorum"
	"github.com/ruteri/message-relay-backend/relay"
)

const testChain = interfaces.ChainKey("chain-b")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type testServer struct {
	client    *clients.RelayClient
	serverURL string
	dest      *destination.MockDestination

	attestorKey *ecdsa.PrivateKey
	attestor    interfaces.AccountAddress
	ownerKey    *ecdsa.PrivateKey
	sender      interfaces.AccountAddress
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	attestorKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	ownerKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	ts := &testServer{
		attestorKey: attestorKey,
		attestor:    keymanager.SignerAddress(attestorKey),
		ownerKey:    ownerKey,
		dest:        destination.NewMockDestination(),
	}

	signerQuorum := quorum.New([]interfaces.AccountAddress{ts.attestor}, nil, nil)
	registry, err := relay.New(signerQuorum, nil, nil)
	require.NoError(t, err)
	require.NoError(t, registry.RegisterDestination(testChain, ts.dest))

	handler := NewHandler(registry, signerQuorum, testLogger())
	admin := NewAdminHandler(keymanager.SignerAddress(ownerKey), handler, registry, nil, testLogger())

	srv, err := New(&HTTPServerConfig{
		Log:                      testLogger(),
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, handler, admin)
	require.NoError(t, err)

	httpSrv := httptest.NewServer(srv.getRouter())
	t.Cleanup(httpSrv.Close)

	ts.serverURL = httpSrv.URL
	ts.client = clients.NewRelayClient(httpSrv.URL).WithAdminKey(ownerKey)

	sender, err := interfaces.NewAccountAddressFromHex("0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)
	ts.sender = sender

	return ts
}

func (ts *testServer) envelope(t *testing.T, nonce uint64, inner string) []byte {
	t.Helper()

	payload, err := interfaces.EncodeProposalEnvelope(interfaces.ProposalEnvelope{
		Nonce:  nonce,
		Sender: ts.sender,
		Inner:  []byte(inner),
	})
	require.NoError(t, err)
	return payload
}

func (ts *testServer) sign(t *testing.T, messageID interfaces.MessageID) []byte {
	t.Helper()

	signature, err := keymanager.SignMessageID(ts.attestorKey, messageID)
	require.NoError(t, err)
	return signature
}

func TestFullMessageLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	nonce, err := ts.client.Nonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)

	messageID, err := ts.client.Propose(ctx, testChain, "receiver-1", ts.envelope(t, 0, "hello"), nil)
	require.NoError(t, err)

	msg, err := ts.client.GetMessage(ctx, messageID)
	require.NoError(t, err)
	assert.Equal(t, "pending", msg.State)
	assert.Equal(t, 1, msg.Threshold)
	assert.Equal(t, ts.sender.String(), msg.Sender)

	pending, err := ts.client.PendingMessages(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, messageID.Equal(pending[0]))

	voteCount, err := ts.client.Attest(ctx, messageID, ts.attestor, ts.sign(t, messageID))
	require.NoError(t, err)
	assert.Equal(t, 1, voteCount)

	require.NoError(t, ts.client.Execute(ctx, messageID))
	require.Len(t, ts.dest.Delivered(), 1)

	msg, err = ts.client.GetMessage(ctx, messageID)
	require.NoError(t, err)
	assert.Equal(t, "executed", msg.State)

	nonce, err = ts.client.Nonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()

	var apiErr *clients.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, status, apiErr.StatusCode)
}

func TestErrorStatusMapping(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	// Nonce mismatch is a conflict.
	_, err := ts.client.Propose(ctx, testChain, "receiver-1", ts.envelope(t, 9, "ahead"), nil)
	requireStatus(t, err, 409)

	unknownID, err := interfaces.NewMessageIDFromBytes(crypto.Keccak256([]byte("unknown")))
	require.NoError(t, err)

	_, err = ts.client.GetMessage(ctx, unknownID)
	requireStatus(t, err, 404)

	messageID, err := ts.client.Propose(ctx, testChain, "receiver-1", ts.envelope(t, 0, "gated"), nil)
	require.NoError(t, err)

	// Execution before quorum is a precondition failure.
	err = ts.client.Execute(ctx, messageID)
	requireStatus(t, err, 412)

	// Unknown attestor is forbidden.
	strangerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	strangerSig, err := keymanager.SignMessageID(strangerKey, messageID)
	require.NoError(t, err)
	_, err = ts.client.Attest(ctx, messageID, keymanager.SignerAddress(strangerKey), strangerSig)
	requireStatus(t, err, 403)

	// Duplicate vote is a conflict.
	signature := ts.sign(t, messageID)
	_, err = ts.client.Attest(ctx, messageID, ts.attestor, signature)
	require.NoError(t, err)
	_, err = ts.client.Attest(ctx, messageID, ts.attestor, signature)
	requireStatus(t, err, 409)

	// Failing destination surfaces as a bad gateway, retryable.
	ts.dest.Err = assert.AnError
	err = ts.client.Execute(ctx, messageID)
	requireStatus(t, err, 502)

	ts.dest.Err = nil
	require.NoError(t, ts.client.Execute(ctx, messageID))
}

func TestAdminRequiresOwnerSignature(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	strangerKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	stranger := clients.NewRelayClient(ts.serverURL).WithAdminKey(strangerKey)
	err = stranger.AddAttestor(ctx, keymanager.SignerAddress(strangerKey))
	requireStatus(t, err, 401)

	require.NoError(t, ts.client.AddAttestor(ctx, keymanager.SignerAddress(strangerKey)))
}

func TestAdminRegisterDestinationAndQuorum(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	endpoint := httptest.NewServer(okHandler())
	t.Cleanup(endpoint.Close)

	require.NoError(t, ts.client.RegisterDestination(ctx, "chain-c", endpoint.URL, ""))

	// Replacing the quorum resets votes but keeps the attestor set we provide.
	newKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, ts.client.SetQuorum(ctx, []interfaces.AccountAddress{keymanager.SignerAddress(newKey)}))

	messageID, err := ts.client.Propose(ctx, "chain-c", "receiver-2", ts.envelope(t, 0, "rerouted"), nil)
	require.NoError(t, err)

	// The old attestor is no longer authorized under the new quorum.
	_, err = ts.client.Attest(ctx, messageID, ts.attestor, ts.sign(t, messageID))
	requireStatus(t, err, 403)

	signature, err := keymanager.SignMessageID(newKey, messageID)
	require.NoError(t, err)
	_, err = ts.client.Attest(ctx, messageID, keymanager.SignerAddress(newKey), signature)
	require.NoError(t, err)

	require.NoError(t, ts.client.Execute(ctx, messageID))
}
