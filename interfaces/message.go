package interfaces

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MessageState tracks the one-way lifecycle of a relayed message.
type MessageState int

const (
	// StatePending marks a proposed message awaiting quorum.
	StatePending MessageState = iota
	// StateExecuted marks a message delivered to its destination handler.
	StateExecuted
)

// String returns the state name.
func (s MessageState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

// Message is a cross-chain message proposal tracked by the registry.
// The Threshold is derived once at proposal time and never recomputed,
// so attribute changes after proposal cannot alter quorum requirements.
type Message struct {
	ID               MessageID
	DestinationChain ChainKey
	Receiver         string
	Payload          []byte
	Attributes       [][]byte
	Nonce            uint64
	Sender           AccountAddress
	Threshold        int
	State            MessageState
	CreatedAt        time.Time
}

// ComputeMessageID calculates the deterministic identity of a message as the
// keccak256 hash of the canonical ABI encoding of all five fields in order
// (string, string, bytes, bytes[], uint64). The same fields always produce the
// same ID, on- or off-chain.
func ComputeMessageID(destinationChain ChainKey, receiver string, payload []byte, attributes [][]byte, nonce uint64) (MessageID, error) {
	stringTy, _ := abi.NewType("string", "", nil)
	bytesTy, _ := abi.NewType("bytes", "", nil)
	bytesArrTy, _ := abi.NewType("bytes[]", "", nil)
	uint64Ty, _ := abi.NewType("uint64", "", nil)

	arguments := abi.Arguments{
		{Type: stringTy},
		{Type: stringTy},
		{Type: bytesTy},
		{Type: bytesArrTy},
		{Type: uint64Ty},
	}

	packed, err := arguments.Pack(string(destinationChain), receiver, payload, attributes, nonce)
	if err != nil {
		return MessageID{}, fmt.Errorf("failed to encode message fields: %w", err)
	}

	return MessageID(crypto.Keccak256Hash(packed)), nil
}

// ProposalEnvelope is the decoded form of a proposal payload. The registry
// requires every payload to carry its expected nonce and the original sender
// alongside the inner payload forwarded to the destination.
type ProposalEnvelope struct {
	Nonce  uint64
	Sender AccountAddress
	Inner  []byte
}

func envelopeArguments() abi.Arguments {
	uint64Ty, _ := abi.NewType("uint64", "", nil)
	addressTy, _ := abi.NewType("address", "", nil)
	bytesTy, _ := abi.NewType("bytes", "", nil)

	return abi.Arguments{
		{Type: uint64Ty},
		{Type: addressTy},
		{Type: bytesTy},
	}
}

// EncodeProposalEnvelope packs an envelope into the wire payload format.
func EncodeProposalEnvelope(env ProposalEnvelope) ([]byte, error) {
	packed, err := envelopeArguments().Pack(env.Nonce, common.Address(env.Sender), env.Inner)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proposal envelope: %w", err)
	}
	return packed, nil
}

// DecodeProposalEnvelope unpacks a proposal payload into its envelope form.
func DecodeProposalEnvelope(payload []byte) (ProposalEnvelope, error) {
	values, err := envelopeArguments().Unpack(payload)
	if err != nil {
		return ProposalEnvelope{}, fmt.Errorf("failed to decode proposal envelope: %w", err)
	}
	if len(values) != 3 {
		return ProposalEnvelope{}, fmt.Errorf("malformed proposal envelope: %d values", len(values))
	}

	nonce, ok := values[0].(uint64)
	if !ok {
		return ProposalEnvelope{}, fmt.Errorf("malformed proposal envelope nonce")
	}
	sender, ok := values[1].(common.Address)
	if !ok {
		return ProposalEnvelope{}, fmt.Errorf("malformed proposal envelope sender")
	}
	inner, ok := values[2].([]byte)
	if !ok {
		return ProposalEnvelope{}, fmt.Errorf("malformed proposal envelope payload")
	}

	return ProposalEnvelope{
		Nonce:  nonce,
		Sender: AccountAddress(sender),
		Inner:  inner,
	}, nil
}

func attributeArguments() abi.Arguments {
	stringTy, _ := abi.NewType("string", "", nil)
	bytesTy, _ := abi.NewType("bytes", "", nil)

	return abi.Arguments{
		{Type: stringTy},
		{Type: bytesTy},
	}
}

// EncodeAttribute packs a self-describing key/value attribute.
func EncodeAttribute(key string, value []byte) ([]byte, error) {
	packed, err := attributeArguments().Pack(key, value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attribute %q: %w", key, err)
	}
	return packed, nil
}

// DecodeAttribute unpacks a key/value attribute. Attributes that do not follow
// the convention fail to decode and are treated as opaque by consumers.
func DecodeAttribute(attribute []byte) (string, []byte, error) {
	values, err := attributeArguments().Unpack(attribute)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode attribute: %w", err)
	}
	if len(values) != 2 {
		return "", nil, fmt.Errorf("malformed attribute: %d values", len(values))
	}

	key, ok := values[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("malformed attribute key")
	}
	value, ok := values[1].([]byte)
	if !ok {
		return "", nil, fmt.Errorf("malformed attribute value")
	}

	return key, value, nil
}
