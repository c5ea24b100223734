package interfaces

import (
	"context"
	"errors"
)

var (
	// ErrInvalidNonce is returned when a proposal's embedded nonce does not
	// match the registry's expected counter value.
	ErrInvalidNonce = errors.New("proposal nonce does not match expected nonce")

	// ErrMessageNotFound is returned when an operation references an unknown message ID.
	ErrMessageNotFound = errors.New("message not found")

	// ErrAlreadyExecuted is returned when execute or propose targets a message
	// already marked executed.
	ErrAlreadyExecuted = errors.New("message already executed")

	// ErrNotEnoughSignatures is returned when execute is attempted before the
	// quorum threshold is reached. State is unchanged and the call may be retried.
	ErrNotEnoughSignatures = errors.New("not enough attestations for execution")

	// ErrUnauthorized is returned when attest is called by a non-registered attestor.
	ErrUnauthorized = errors.New("attestor not authorized")

	// ErrDuplicateVote is returned when an attestor attempts a second vote on
	// the same message.
	ErrDuplicateVote = errors.New("attestor already voted for this message")

	// ErrInvalidSignature is returned when the recovered signer does not match
	// the claimed attestor identity.
	ErrInvalidSignature = errors.New("signature does not match attestor identity")

	// ErrInvalidConfiguration is returned when an administrative call supplies
	// a null or empty reference.
	ErrInvalidConfiguration = errors.New("invalid configuration reference")

	// ErrDeliveryFailed is returned when the destination handler reported a
	// failure. No state is committed and the call is safe to retry.
	ErrDeliveryFailed = errors.New("destination handler delivery failed")

	// ErrExecutionInProgress is returned when execute is entered while another
	// execution is in flight, including reentrant calls from a destination handler.
	ErrExecutionInProgress = errors.New("execution already in progress")
)

// AttestationQuorum authorizes voters, records endorsements, and answers
// whether quorum has been reached for a message.
type AttestationQuorum interface {
	// IsAuthorized reports whether the attestor is in the registry.
	IsAuthorized(attestor AccountAddress) bool

	// Attest records an endorsement of messageID by the attestor. The
	// signature must recover to the attestor's own address.
	Attest(attestor AccountAddress, messageID MessageID, signature []byte) error

	// DeriveThreshold computes the required signature count from message
	// attributes. It is pure: the registry calls it once at proposal time and
	// trusts the result permanently.
	DeriveThreshold(attributes [][]byte) int

	// VoteCount returns the number of distinct recorded endorsements.
	VoteCount(messageID MessageID) int

	// AddAttestor registers an additional authorized attestor. The set is
	// add-only; there is no removal.
	AddAttestor(attestor AccountAddress) error
}

// DestinationHandler accepts execution envelopes forwarded by the registry.
// Implementations are external collaborators registered per routing key.
type DestinationHandler interface {
	// Deliver forwards an executed message. A returned error aborts the
	// entire execute operation with no state committed.
	Deliver(ctx context.Context, msg *Message) error
}

// MessageRegistry accepts ordered message proposals and gates execution on
// attestation quorum.
type MessageRegistry interface {
	// Propose registers a message and returns its deterministic identity.
	// Re-proposing an identical pending message is idempotent.
	Propose(ctx context.Context, destinationChain ChainKey, receiver string, payload []byte, attributes [][]byte) (MessageID, error)

	// Execute delivers a message to its destination handler once quorum is
	// reached and marks it executed, exactly once.
	Execute(ctx context.Context, messageID MessageID) error

	// GetMessage returns the stored message for an ID.
	GetMessage(messageID MessageID) (*Message, error)

	// Nonce returns the next expected proposal nonce.
	Nonce() uint64

	// PendingMessages lists IDs of messages still awaiting execution.
	PendingMessages() []MessageID

	// RegisterDestination associates a routing key with a destination handler.
	RegisterDestination(chainKey ChainKey, handler DestinationHandler) error

	// SetQuorum replaces the attestation quorum reference. Nil is rejected.
	SetQuorum(quorum AttestationQuorum) error
}

// ProposalEvent is emitted when a proposal is accepted.
type ProposalEvent struct {
	ID               MessageID
	DestinationChain ChainKey
	Receiver         string
}

// AttestationEvent is emitted for every recorded endorsement.
type AttestationEvent struct {
	ID        MessageID
	Attestor  AccountAddress
	VoteCount int
}

// ExecutionEvent is emitted after a message is delivered and marked executed.
type ExecutionEvent struct {
	ID               MessageID
	DestinationChain ChainKey
	Receiver         string
}

// EventSink receives relay lifecycle events.
type EventSink interface {
	ProposalCreated(event ProposalEvent)
	AttestationRecorded(event AttestationEvent)
	MessageExecuted(event ExecutionEvent)
}
