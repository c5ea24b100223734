package relay

import (
	"context"
	"crypto/ecdsa"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/message-relay-backend/destination"
	"github.com/ruteri/message-relay-backend/interfaces"
	"github.com/ruteri/message-relay-backend/quorum"
)

const testChain = interfaces.ChainKey("chain-b")

// eventRecorder captures emitted events for assertions.
type eventRecorder struct {
	mu           sync.Mutex
	proposals    []interfaces.ProposalEvent
	attestations []interfaces.AttestationEvent
	executions   []interfaces.ExecutionEvent
}

func (e *eventRecorder) ProposalCreated(event interfaces.ProposalEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.proposals = append(e.proposals, event)
}

func (e *eventRecorder) AttestationRecorded(event interfaces.AttestationEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attestations = append(e.attestations, event)
}

func (e *eventRecorder) MessageExecuted(event interfaces.ExecutionEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executions = append(e.executions, event)
}

type testRelay struct {
	registry *Registry
	quorum   *quorum.SignerQuorum
	events   *eventRecorder
	dest     *destination.MockDestination

	keys      []*ecdsa.PrivateKey
	attestors []interfaces.AccountAddress
	sender    interfaces.AccountAddress
}

func newTestRelay(t *testing.T, numAttestors int) *testRelay {
	t.Helper()

	tr := &testRelay{events: &eventRecorder{}}
	for i := 0; i < numAttestors; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		tr.keys = append(tr.keys, key)
		tr.attestors = append(tr.attestors, interfaces.AccountAddress(crypto.PubkeyToAddress(key.PublicKey)))
	}

	tr.quorum = quorum.New(tr.attestors, nil, tr.events)

	registry, err := New(tr.quorum, nil, tr.events)
	require.NoError(t, err)
	tr.registry = registry

	tr.dest = destination.NewMockDestination()
	require.NoError(t, registry.RegisterDestination(testChain, tr.dest))

	sender, err := interfaces.NewAccountAddressFromHex("0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)
	tr.sender = sender

	return tr
}

func (tr *testRelay) envelope(t *testing.T, nonce uint64, inner string) []byte {
	t.Helper()

	payload, err := interfaces.EncodeProposalEnvelope(interfaces.ProposalEnvelope{
		Nonce:  nonce,
		Sender: tr.sender,
		Inner:  []byte(inner),
	})
	require.NoError(t, err)
	return payload
}

func (tr *testRelay) propose(t *testing.T, nonce uint64, inner string, attributes [][]byte) interfaces.MessageID {
	t.Helper()

	messageID, err := tr.registry.Propose(context.Background(), testChain, "receiver-1", tr.envelope(t, nonce, inner), attributes)
	require.NoError(t, err)
	return messageID
}

func (tr *testRelay) attest(t *testing.T, signerIndex int, messageID interfaces.MessageID) {
	t.Helper()

	signature, err := crypto.Sign(messageID.Bytes(), tr.keys[signerIndex])
	require.NoError(t, err)
	require.NoError(t, tr.quorum.Attest(tr.attestors[signerIndex], messageID, signature))
}

func TestProposeAdvancesNonce(t *testing.T) {
	tr := newTestRelay(t, 1)

	assert.Equal(t, uint64(0), tr.registry.Nonce())
	id0 := tr.propose(t, 0, "first", nil)
	assert.Equal(t, uint64(1), tr.registry.Nonce())
	id1 := tr.propose(t, 1, "second", nil)
	assert.Equal(t, uint64(2), tr.registry.Nonce())

	assert.False(t, id0.Equal(id1))
}

func TestProposeRejectsNonceMismatch(t *testing.T) {
	tr := newTestRelay(t, 1)

	_, err := tr.registry.Propose(context.Background(), testChain, "receiver-1", tr.envelope(t, 5, "ahead"), nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidNonce)

	// A rejected proposal must not advance the counter.
	assert.Equal(t, uint64(0), tr.registry.Nonce())
	tr.propose(t, 0, "ok", nil)
}

func TestProposeRejectsUndecodablePayload(t *testing.T) {
	tr := newTestRelay(t, 1)

	_, err := tr.registry.Propose(context.Background(), testChain, "receiver-1", []byte("not an envelope"), nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidNonce)
	assert.Equal(t, uint64(0), tr.registry.Nonce())
}

func TestProposeRejectsInvalidChainKey(t *testing.T) {
	tr := newTestRelay(t, 1)

	_, err := tr.registry.Propose(context.Background(), "", "receiver-1", tr.envelope(t, 0, "x"), nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidConfiguration)
}

func TestProposeIdempotentForPending(t *testing.T) {
	tr := newTestRelay(t, 1)

	id := tr.propose(t, 0, "dup", nil)
	assert.Equal(t, uint64(1), tr.registry.Nonce())

	// The identical proposal no longer matches the counter, yet it must
	// succeed with the same ID and leave all state untouched.
	again, err := tr.registry.Propose(context.Background(), testChain, "receiver-1", tr.envelope(t, 0, "dup"), nil)
	require.NoError(t, err)
	assert.True(t, id.Equal(again))
	assert.Equal(t, uint64(1), tr.registry.Nonce())
	assert.Len(t, tr.events.proposals, 1)
}

func TestProposeRejectsExecutedReproposal(t *testing.T) {
	tr := newTestRelay(t, 1)

	id := tr.propose(t, 0, "once", nil)
	tr.attest(t, 0, id)
	require.NoError(t, tr.registry.Execute(context.Background(), id))

	_, err := tr.registry.Propose(context.Background(), testChain, "receiver-1", tr.envelope(t, 0, "once"), nil)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyExecuted)
}

func TestExecuteDeliversExactlyOnce(t *testing.T) {
	tr := newTestRelay(t, 1)

	id := tr.propose(t, 0, "deliver me", nil)
	tr.attest(t, 0, id)

	require.NoError(t, tr.registry.Execute(context.Background(), id))

	delivered := tr.dest.Delivered()
	require.Len(t, delivered, 1)
	assert.True(t, id.Equal(delivered[0].ID))
	assert.Equal(t, testChain, delivered[0].DestinationChain)

	msg, err := tr.registry.GetMessage(id)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StateExecuted, msg.State)

	err = tr.registry.Execute(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyExecuted)
	assert.Len(t, tr.dest.Delivered(), 1)
}

func TestExecuteRequiresQuorum(t *testing.T) {
	tr := newTestRelay(t, 2)

	id := tr.propose(t, 0, "gated", nil)
	err := tr.registry.Execute(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrNotEnoughSignatures)
	assert.Empty(t, tr.dest.Delivered())

	tr.attest(t, 0, id)
	require.NoError(t, tr.registry.Execute(context.Background(), id))
}

func TestExecuteHighImpactThreshold(t *testing.T) {
	tr := newTestRelay(t, 2)

	highImpact, err := interfaces.EncodeAttribute("impact", []byte("high"))
	require.NoError(t, err)

	id := tr.propose(t, 0, "high impact", [][]byte{highImpact})

	msg, err := tr.registry.GetMessage(id)
	require.NoError(t, err)
	assert.Equal(t, quorum.ElevatedThreshold, msg.Threshold)

	tr.attest(t, 0, id)
	err = tr.registry.Execute(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrNotEnoughSignatures)

	tr.attest(t, 1, id)
	require.NoError(t, tr.registry.Execute(context.Background(), id))
}

func TestExecuteUnknownMessage(t *testing.T) {
	tr := newTestRelay(t, 1)

	unknown, err := interfaces.NewMessageIDFromBytes(crypto.Keccak256([]byte("nope")))
	require.NoError(t, err)

	assert.ErrorIs(t, tr.registry.Execute(context.Background(), unknown), interfaces.ErrMessageNotFound)
}

func TestExecuteWithoutDestination(t *testing.T) {
	tr := newTestRelay(t, 1)

	payload := tr.envelope(t, 0, "unrouted")
	id, err := tr.registry.Propose(context.Background(), "chain-unrouted", "receiver-1", payload, nil)
	require.NoError(t, err)
	tr.attest(t, 0, id)

	assert.ErrorIs(t, tr.registry.Execute(context.Background(), id), interfaces.ErrInvalidConfiguration)
}

func TestExecuteDeliveryFailureIsRetryable(t *testing.T) {
	tr := newTestRelay(t, 1)

	id := tr.propose(t, 0, "flaky", nil)
	tr.attest(t, 0, id)

	tr.dest.Err = assert.AnError
	err := tr.registry.Execute(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrDeliveryFailed)

	msg, err := tr.registry.GetMessage(id)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatePending, msg.State)
	assert.Empty(t, tr.events.executions)

	tr.dest.Err = nil
	require.NoError(t, tr.registry.Execute(context.Background(), id))
	assert.Len(t, tr.dest.Delivered(), 1)
}

func TestExecuteRejectsReentrancy(t *testing.T) {
	tr := newTestRelay(t, 1)

	id := tr.propose(t, 0, "reentrant", nil)
	tr.attest(t, 0, id)

	var reentrantErr error
	tr.dest.OnDeliver = func(ctx context.Context, msg *interfaces.Message) error {
		reentrantErr = tr.registry.Execute(ctx, msg.ID)
		return nil
	}

	require.NoError(t, tr.registry.Execute(context.Background(), id))
	assert.ErrorIs(t, reentrantErr, interfaces.ErrExecutionInProgress)
	assert.Len(t, tr.dest.Delivered(), 1)
}

func TestPendingMessages(t *testing.T) {
	tr := newTestRelay(t, 1)

	id0 := tr.propose(t, 0, "a", nil)
	id1 := tr.propose(t, 1, "b", nil)

	pending := tr.registry.PendingMessages()
	assert.ElementsMatch(t, []interfaces.MessageID{id0, id1}, pending)

	tr.attest(t, 0, id0)
	require.NoError(t, tr.registry.Execute(context.Background(), id0))

	pending = tr.registry.PendingMessages()
	assert.ElementsMatch(t, []interfaces.MessageID{id1}, pending)
}

func TestEventsCarryLifecycleFields(t *testing.T) {
	tr := newTestRelay(t, 1)

	id := tr.propose(t, 0, "observed", nil)
	tr.attest(t, 0, id)
	require.NoError(t, tr.registry.Execute(context.Background(), id))

	require.Len(t, tr.events.proposals, 1)
	assert.True(t, id.Equal(tr.events.proposals[0].ID))
	assert.Equal(t, testChain, tr.events.proposals[0].DestinationChain)
	assert.Equal(t, "receiver-1", tr.events.proposals[0].Receiver)

	require.Len(t, tr.events.attestations, 1)
	assert.True(t, id.Equal(tr.events.attestations[0].ID))
	assert.True(t, tr.attestors[0].Equal(tr.events.attestations[0].Attestor))
	assert.Equal(t, 1, tr.events.attestations[0].VoteCount)

	require.Len(t, tr.events.executions, 1)
	assert.True(t, id.Equal(tr.events.executions[0].ID))
	assert.Equal(t, testChain, tr.events.executions[0].DestinationChain)
}

func TestConfigurationValidation(t *testing.T) {
	tr := newTestRelay(t, 1)

	_, err := New(nil, nil, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidConfiguration)

	assert.ErrorIs(t, tr.registry.RegisterDestination("", tr.dest), interfaces.ErrInvalidConfiguration)
	assert.ErrorIs(t, tr.registry.RegisterDestination("chain-x", nil), interfaces.ErrInvalidConfiguration)
	assert.ErrorIs(t, tr.registry.SetQuorum(nil), interfaces.ErrInvalidConfiguration)
}

func TestGetMessageReturnsCopy(t *testing.T) {
	tr := newTestRelay(t, 1)

	id := tr.propose(t, 0, "immutable", nil)

	msg, err := tr.registry.GetMessage(id)
	require.NoError(t, err)
	msg.State = interfaces.StateExecuted

	stored, err := tr.registry.GetMessage(id)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatePending, stored.State)
}

func TestMessageSlicesAreNotAliased(t *testing.T) {
	tr := newTestRelay(t, 1)

	attribute, err := interfaces.EncodeAttribute("impact", []byte("low"))
	require.NoError(t, err)

	id := tr.propose(t, 0, "sealed", [][]byte{attribute})

	// Mutating a fetched copy must not touch the stored payload or attributes.
	msg, err := tr.registry.GetMessage(id)
	require.NoError(t, err)
	msg.Payload[0] ^= 0xff
	msg.Attributes[0][0] ^= 0xff

	stored, err := tr.registry.GetMessage(id)
	require.NoError(t, err)
	assert.Equal(t, tr.envelope(t, 0, "sealed"), stored.Payload)
	assert.Equal(t, attribute, stored.Attributes[0])

	// A destination handler scribbling over the delivered message must not
	// corrupt the record the registry keeps.
	tr.dest.OnDeliver = func(ctx context.Context, delivered *interfaces.Message) error {
		delivered.Payload[0] ^= 0xff
		return nil
	}
	tr.attest(t, 0, id)
	require.NoError(t, tr.registry.Execute(context.Background(), id))

	stored, err = tr.registry.GetMessage(id)
	require.NoError(t, err)
	assert.Equal(t, tr.envelope(t, 0, "sealed"), stored.Payload)
}
