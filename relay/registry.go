package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/ruteri/message-relay-backend/interfaces"
)

// Registry implements interfaces.MessageRegistry. It accepts proposals in
// strict nonce order, freezes the quorum threshold at proposal time, and
// performs the one-time forwarding call to the destination handler on execute.
//
// All state mutations are serialized under a single mutex. The forwarding
// call itself happens outside the mutex; a process-wide execution guard keeps
// execute single-shot even against reentrant calls from a handler.
type Registry struct {
	mu           sync.Mutex
	quorum       interfaces.AttestationQuorum
	destinations map[interfaces.ChainKey]interfaces.DestinationHandler
	messages     map[interfaces.MessageID]*interfaces.Message
	nonce        uint64

	executing atomic.Bool

	archive interfaces.StorageBackend
	log     *slog.Logger
	events  interfaces.EventSink
	now     func() time.Time
}

// New creates a message registry backed by the provided quorum.
func New(quorum interfaces.AttestationQuorum, log *slog.Logger, events interfaces.EventSink) (*Registry, error) {
	if quorum == nil {
		return nil, fmt.Errorf("%w: nil quorum", interfaces.ErrInvalidConfiguration)
	}
	if log == nil {
		log = slog.Default()
	}

	return &Registry{
		quorum:       quorum,
		destinations: make(map[interfaces.ChainKey]interfaces.DestinationHandler),
		messages:     make(map[interfaces.MessageID]*interfaces.Message),
		log:          log,
		events:       events,
		now:          time.Now,
	}, nil
}

// WithArchive configures a storage backend for proposal records and execution
// receipts. Archive writes are best-effort and never affect relay state.
func (r *Registry) WithArchive(archive interfaces.StorageBackend) *Registry {
	r.archive = archive
	return r
}

// Propose registers a message proposal and returns its deterministic identity.
//
// The payload must be a proposal envelope carrying the expected nonce, the
// original sender, and the inner payload. Proposals are accepted strictly in
// nonce order; the counter advances only when a proposal is accepted.
// Re-proposing an identical pending message is idempotent: the existing ID is
// returned and no threshold is recomputed.
func (r *Registry) Propose(ctx context.Context, destinationChain interfaces.ChainKey, receiver string, payload []byte, attributes [][]byte) (interfaces.MessageID, error) {
	if err := destinationChain.Validate(); err != nil {
		return interfaces.MessageID{}, fmt.Errorf("%w: %v", interfaces.ErrInvalidConfiguration, err)
	}

	envelope, err := interfaces.DecodeProposalEnvelope(payload)
	if err != nil {
		// An unreadable envelope carries no verifiable nonce.
		return interfaces.MessageID{}, fmt.Errorf("%w: %v", interfaces.ErrInvalidNonce, err)
	}

	messageID, err := interfaces.ComputeMessageID(destinationChain, receiver, payload, attributes, envelope.Nonce)
	if err != nil {
		return interfaces.MessageID{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.messages[messageID]; ok {
		if existing.State == interfaces.StateExecuted {
			return interfaces.MessageID{}, fmt.Errorf("%w: %s", interfaces.ErrAlreadyExecuted, messageID)
		}

		r.log.Debug("Duplicate proposal for pending message",
			slog.String("message_id", messageID.String()))
		return messageID, nil
	}

	if envelope.Nonce != r.nonce {
		return interfaces.MessageID{}, fmt.Errorf("%w: expected %d, got %d", interfaces.ErrInvalidNonce, r.nonce, envelope.Nonce)
	}

	msg := &interfaces.Message{
		ID:               messageID,
		DestinationChain: destinationChain,
		Receiver:         receiver,
		Payload:          bytes.Clone(payload),
		Attributes:       cloneAttributes(attributes),
		Nonce:            envelope.Nonce,
		Sender:           envelope.Sender,
		Threshold:        r.quorum.DeriveThreshold(attributes),
		State:            interfaces.StatePending,
		CreatedAt:        r.now(),
	}

	r.messages[messageID] = msg
	r.nonce++

	r.log.Info("Message proposed",
		slog.String("message_id", messageID.String()),
		slog.String("destination_chain", destinationChain.String()),
		slog.String("receiver", receiver),
		slog.Uint64("nonce", msg.Nonce),
		slog.Int("threshold", msg.Threshold))

	if r.events != nil {
		r.events.ProposalCreated(interfaces.ProposalEvent{
			ID:               messageID,
			DestinationChain: destinationChain,
			Receiver:         receiver,
		})
	}

	r.archiveRecord(ctx, msg, interfaces.MessageRecordType)

	return messageID, nil
}

// Execute delivers a message to its destination handler once quorum is
// reached and marks it executed, exactly once.
//
// The forwarding call happens before the state flip so the message only turns
// executed when delivery is confirmed. A handler failure aborts the whole
// operation with nothing committed; the caller may retry. While a delivery is
// in flight any further execute call, including a reentrant one from inside
// the handler, is rejected with ErrExecutionInProgress.
func (r *Registry) Execute(ctx context.Context, messageID interfaces.MessageID) error {
	if !r.executing.CompareAndSwap(false, true) {
		return interfaces.ErrExecutionInProgress
	}
	defer r.executing.Store(false)

	r.mu.Lock()
	msg, ok := r.messages[messageID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", interfaces.ErrMessageNotFound, messageID)
	}
	if msg.State == interfaces.StateExecuted {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", interfaces.ErrAlreadyExecuted, messageID)
	}

	votes := r.quorum.VoteCount(messageID)
	if votes < msg.Threshold {
		r.mu.Unlock()
		return fmt.Errorf("%w: have %d, need %d", interfaces.ErrNotEnoughSignatures, votes, msg.Threshold)
	}

	handler, ok := r.destinations[msg.DestinationChain]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: no destination handler for chain %s", interfaces.ErrInvalidConfiguration, msg.DestinationChain)
	}

	delivery := cloneMessage(msg)
	r.mu.Unlock()

	// Synchronous forwarding call; the execution guard is still held.
	if err := handler.Deliver(ctx, delivery); err != nil {
		r.log.Warn("Destination delivery failed",
			slog.String("message_id", messageID.String()),
			slog.String("destination_chain", msg.DestinationChain.String()),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrDeliveryFailed, err)
	}

	r.mu.Lock()
	msg.State = interfaces.StateExecuted
	executed := cloneMessage(msg)
	r.mu.Unlock()

	r.log.Info("Message executed",
		slog.String("message_id", messageID.String()),
		slog.String("destination_chain", executed.DestinationChain.String()),
		slog.String("receiver", executed.Receiver),
		slog.Int("votes", votes))

	if r.events != nil {
		r.events.MessageExecuted(interfaces.ExecutionEvent{
			ID:               messageID,
			DestinationChain: executed.DestinationChain,
			Receiver:         executed.Receiver,
		})
	}

	r.archiveRecord(ctx, executed, interfaces.ReceiptType)

	return nil
}

// GetMessage returns a copy of the stored message for an ID.
func (r *Registry) GetMessage(messageID interfaces.MessageID) (*interfaces.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrMessageNotFound, messageID)
	}

	return cloneMessage(msg), nil
}

// cloneMessage deep-copies a message so handlers and callers cannot reach
// registry state through the shared payload and attribute slices.
func cloneMessage(msg *interfaces.Message) *interfaces.Message {
	cp := *msg
	cp.Payload = bytes.Clone(msg.Payload)
	cp.Attributes = cloneAttributes(msg.Attributes)
	return &cp
}

func cloneAttributes(attributes [][]byte) [][]byte {
	if attributes == nil {
		return nil
	}

	out := make([][]byte, len(attributes))
	for i, attr := range attributes {
		out[i] = bytes.Clone(attr)
	}
	return out
}

// Nonce returns the next expected proposal nonce.
func (r *Registry) Nonce() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.nonce
}

// PendingMessages lists IDs of messages still awaiting execution.
func (r *Registry) PendingMessages() []interfaces.MessageID {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]interfaces.MessageID, 0, len(r.messages))
	for id, msg := range r.messages {
		if msg.State == interfaces.StatePending {
			pending = append(pending, id)
		}
	}
	return pending
}

// RegisterDestination associates a routing key with a destination handler.
// Only the registry owner may call this; ownership is enforced by the
// administrative API surface.
func (r *Registry) RegisterDestination(chainKey interfaces.ChainKey, handler interfaces.DestinationHandler) error {
	if err := chainKey.Validate(); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrInvalidConfiguration, err)
	}
	if handler == nil {
		return fmt.Errorf("%w: nil destination handler", interfaces.ErrInvalidConfiguration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.destinations[chainKey] = handler
	r.log.Info("Destination registered", slog.String("chain_key", chainKey.String()))
	return nil
}

// SetQuorum replaces the attestation quorum reference.
func (r *Registry) SetQuorum(quorum interfaces.AttestationQuorum) error {
	if quorum == nil {
		return fmt.Errorf("%w: nil quorum", interfaces.ErrInvalidConfiguration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.quorum = quorum
	r.log.Info("Attestation quorum replaced")
	return nil
}

// executionRecord is the archived JSON form of a message snapshot.
type executionRecord struct {
	MessageID        string    `json:"message_id"`
	DestinationChain string    `json:"destination_chain"`
	Receiver         string    `json:"receiver"`
	Payload          []byte    `json:"payload"`
	Nonce            uint64    `json:"nonce"`
	Sender           string    `json:"sender"`
	Threshold        int       `json:"threshold"`
	State            string    `json:"state"`
	CreatedAt        time.Time `json:"created_at"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// archiveRecord persists a message snapshot to the configured archive.
// Failures are logged and swallowed: archival must never corrupt relay state.
func (r *Registry) archiveRecord(ctx context.Context, msg *interfaces.Message, contentType interfaces.ContentType) {
	if r.archive == nil {
		return
	}

	record := executionRecord{
		MessageID:        msg.ID.String(),
		DestinationChain: msg.DestinationChain.String(),
		Receiver:         msg.Receiver,
		Payload:          msg.Payload,
		Nonce:            msg.Nonce,
		Sender:           msg.Sender.String(),
		Threshold:        msg.Threshold,
		State:            msg.State.String(),
		CreatedAt:        msg.CreatedAt,
		RecordedAt:       r.now(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		r.log.Error("Failed to marshal archive record", "err", err)
		return
	}

	id, err := r.archive.Store(ctx, data, contentType)
	if err != nil {
		r.log.Warn("Failed to archive record",
			slog.String("message_id", msg.ID.String()),
			slog.String("content_type", contentType.String()),
			"err", err)
		return
	}

	r.log.Debug("Archived record",
		slog.String("message_id", msg.ID.String()),
		slog.String("content_id", id.String()),
		slog.String("content_type", contentType.String()))
}
