package attestor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/message-relay-backend/api/clients"
	"github.com/ruteri/message-relay-backend/interfaces"
	"github.com/ruteri/message-relay-backend/quorum"
)

// fakeRelay is a scriptable RelayAPI for runner tests.
type fakeRelay struct {
	mu      sync.Mutex
	pending []interfaces.MessageID

	attestErrs map[interfaces.MessageID][]error
	attested   []interfaces.MessageID
}

func (f *fakeRelay) PendingMessages(ctx context.Context) ([]interfaces.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]interfaces.MessageID, len(f.pending))
	copy(out, f.pending)
	return out, nil
}

func (f *fakeRelay) Attest(ctx context.Context, messageID interfaces.MessageID, attestor interfaces.AccountAddress, signature []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if errs := f.attestErrs[messageID]; len(errs) > 0 {
		err := errs[0]
		f.attestErrs[messageID] = errs[1:]
		return 0, err
	}

	f.attested = append(f.attested, messageID)
	return len(f.attested), nil
}

func (f *fakeRelay) attestedIDs() []interfaces.MessageID {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]interfaces.MessageID, len(f.attested))
	copy(out, f.attested)
	return out
}

func testMessageID(t *testing.T, seed string) interfaces.MessageID {
	t.Helper()

	id, err := interfaces.NewMessageIDFromBytes(crypto.Keccak256([]byte(seed)))
	require.NoError(t, err)
	return id
}

func newTestRunner(t *testing.T, relay RelayAPI) *Runner {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	runner := NewRunner(relay, key, time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	runner.newBackoff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 5)
	}
	return runner
}

func TestPollEndorsesPendingOnce(t *testing.T) {
	id1 := testMessageID(t, "a")
	id2 := testMessageID(t, "b")
	relay := &fakeRelay{pending: []interfaces.MessageID{id1, id2}}
	runner := newTestRunner(t, relay)

	require.NoError(t, runner.PollOnce(context.Background()))
	assert.ElementsMatch(t, []interfaces.MessageID{id1, id2}, relay.attestedIDs())

	// A second poll over the same worklist submits nothing new.
	require.NoError(t, runner.PollOnce(context.Background()))
	assert.Len(t, relay.attestedIDs(), 2)
}

func TestPollSignaturesRecoverToRunner(t *testing.T) {
	id := testMessageID(t, "a")

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	attestorAddr := interfaces.AccountAddress(crypto.PubkeyToAddress(key.PublicKey))

	// Route the runner's submissions through a real quorum so the signature
	// is fully verified.
	signerQuorum := quorum.New([]interfaces.AccountAddress{attestorAddr}, nil, nil)
	relay := &quorumRelay{pending: []interfaces.MessageID{id}, quorum: signerQuorum}

	runner := NewRunner(relay, key, time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, runner.PollOnce(context.Background()))
	assert.Equal(t, 1, signerQuorum.VoteCount(id))
}

type quorumRelay struct {
	pending []interfaces.MessageID
	quorum  *quorum.SignerQuorum
}

func (q *quorumRelay) PendingMessages(ctx context.Context) ([]interfaces.MessageID, error) {
	return q.pending, nil
}

func (q *quorumRelay) Attest(ctx context.Context, messageID interfaces.MessageID, attestor interfaces.AccountAddress, signature []byte) (int, error) {
	if err := q.quorum.Attest(attestor, messageID, signature); err != nil {
		return 0, &clients.APIError{StatusCode: 409, Body: err.Error()}
	}
	return q.quorum.VoteCount(messageID), nil
}

func TestTerminalRejectionIsNotRetried(t *testing.T) {
	id := testMessageID(t, "dup")
	relay := &fakeRelay{
		pending: []interfaces.MessageID{id},
		attestErrs: map[interfaces.MessageID][]error{
			id: {&clients.APIError{StatusCode: 409, Body: "attestor already voted"}},
		},
	}
	runner := newTestRunner(t, relay)

	require.NoError(t, runner.PollOnce(context.Background()))
	assert.Empty(t, relay.attestedIDs())

	// The rejected message is treated as done; later polls skip it.
	require.NoError(t, runner.PollOnce(context.Background()))
	assert.Empty(t, relay.attestedIDs())
}

func TestServerOutageDoesNotForfeitVote(t *testing.T) {
	id := testMessageID(t, "outage")

	outage := make([]error, 10)
	for i := range outage {
		outage[i] = &clients.APIError{StatusCode: 502, Body: "bad gateway"}
	}
	relay := &fakeRelay{
		pending:    []interfaces.MessageID{id},
		attestErrs: map[interfaces.MessageID][]error{id: outage},
	}
	runner := newTestRunner(t, relay)

	// The first poll exhausts its retry budget against a failing server and
	// must not write the message off.
	require.Error(t, runner.PollOnce(context.Background()))
	assert.Empty(t, relay.attestedIDs())

	// Once the server recovers, the next polls still endorse the message.
	require.NoError(t, runner.PollOnce(context.Background()))
	assert.ElementsMatch(t, []interfaces.MessageID{id}, relay.attestedIDs())
}

func TestTransientErrorIsRetried(t *testing.T) {
	id := testMessageID(t, "flaky")
	relay := &fakeRelay{
		pending: []interfaces.MessageID{id},
		attestErrs: map[interfaces.MessageID][]error{
			id: {errors.New("connection refused"), errors.New("connection refused")},
		},
	}
	runner := newTestRunner(t, relay)

	require.NoError(t, runner.PollOnce(context.Background()))
	assert.ElementsMatch(t, []interfaces.MessageID{id}, relay.attestedIDs())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	relay := &fakeRelay{}
	runner := newTestRunner(t, relay)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
