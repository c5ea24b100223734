// Package interfaces defines the core interfaces and types for the message relay system.
// It provides the contract between different components without implementation details.
package interfaces

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// AccountAddress represents a 20-byte signer or owner account address.
type AccountAddress [20]byte

// NewAccountAddressFromBytes creates an account address from a raw byte slice.
func NewAccountAddressFromBytes(addr []byte) (AccountAddress, error) {
	if len(addr) != 20 {
		return AccountAddress{}, errors.New("invalid address length: must be 20 bytes")
	}

	var res AccountAddress
	copy(res[:], addr)
	return res, nil
}

// NewAccountAddressFromHex creates an account address from a hex string.
func NewAccountAddressFromHex(addr string) (AccountAddress, error) {
	// Remove 0x prefix if present
	clean := strings.TrimPrefix(addr, "0x")
	if len(clean) != 40 {
		return AccountAddress{}, errors.New("invalid address length: hex string must be 40 characters")
	}

	addrBytes, err := hex.DecodeString(clean)
	if err != nil {
		return AccountAddress{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return NewAccountAddressFromBytes(addrBytes)
}

// String returns the hex string representation of the account address.
func (addr AccountAddress) String() string {
	return hex.EncodeToString(addr[:])
}

// Bytes returns the raw 20-byte address.
func (addr AccountAddress) Bytes() []byte {
	return addr[:]
}

// Equal compares two account addresses for equality.
func (addr AccountAddress) Equal(other AccountAddress) bool {
	return addr == other
}

// MessageID is the 32-byte deterministic identity of a relayed message.
// It binds the message content and its ordering position, see ComputeMessageID.
type MessageID [32]byte

// NewMessageIDFromBytes creates a message ID from a raw byte slice.
func NewMessageIDFromBytes(source []byte) (MessageID, error) {
	if len(source) != 32 {
		return MessageID{}, errors.New("invalid MessageID conversion from bytes: incorrect length")
	}

	var id [32]byte
	copy(id[:], source)
	return MessageID(id), nil
}

// NewMessageIDFromHex creates a message ID from a hex string.
func NewMessageIDFromHex(source string) (MessageID, error) {
	// Remove 0x prefix if present
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return MessageID{}, errors.New("invalid message ID length: hex string must be 64 characters")
	}

	idBytes, err := hex.DecodeString(clean)
	if err != nil {
		return MessageID{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var id [32]byte
	copy(id[:], idBytes)
	return MessageID(id), nil
}

// String returns hex representation.
func (id MessageID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw 32-byte identity.
func (id MessageID) Bytes() []byte {
	return id[:]
}

// Equal compares two message IDs.
func (id MessageID) Equal(other MessageID) bool {
	return bytes.Equal(id[:], other[:])
}

// ChainKey is an opaque routing key identifying a destination chain.
type ChainKey string

// NewChainKey creates a chain key with validation.
func NewChainKey(key string) (ChainKey, error) {
	if key == "" {
		return ChainKey(""), errors.New("empty chain key")
	}
	if len(key) > 64 {
		return ChainKey(""), errors.New("chain key too long: must be at most 64 characters")
	}
	return ChainKey(key), nil
}

// String returns the chain key as a string.
func (k ChainKey) String() string {
	return string(k)
}

// Validate checks if the chain key has a valid format.
func (k ChainKey) Validate() error {
	_, err := NewChainKey(string(k))
	return err
}
