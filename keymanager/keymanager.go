package keymanager

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ruteri/message-relay-backend/interfaces"
)

// SimpleKeyManager derives attestor signing keys deterministically from a
// master seed. Suitable for development deployments and tests; production
// attestors hold independently generated keys.
type SimpleKeyManager struct {
	masterSeed []byte
}

// NewSimpleKeyManager creates a new instance with the provided master seed.
// The seed must be at least 32 bytes long.
func NewSimpleKeyManager(masterSeed []byte) (*SimpleKeyManager, error) {
	if len(masterSeed) < 32 {
		return nil, errors.New("master seed must be at least 32 bytes")
	}

	seed := make([]byte, len(masterSeed))
	copy(seed, masterSeed)
	return &SimpleKeyManager{masterSeed: seed}, nil
}

// AttestorKey derives the secp256k1 signing key for an attestor index.
// The derivation is domain-separated so the same seed can serve other roles.
func (k *SimpleKeyManager) AttestorKey(index uint32) (*ecdsa.PrivateKey, error) {
	var indexBytes [4]byte
	binary.BigEndian.PutUint32(indexBytes[:], index)

	keySeed := crypto.Keccak256(k.masterSeed, indexBytes[:], []byte("attestor"))

	key, err := crypto.ToECDSA(keySeed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive attestor key %d: %w", index, err)
	}
	return key, nil
}

// AttestorAddress returns the account address for an attestor index.
func (k *SimpleKeyManager) AttestorAddress(index uint32) (interfaces.AccountAddress, error) {
	key, err := k.AttestorKey(index)
	if err != nil {
		return interfaces.AccountAddress{}, err
	}

	return interfaces.AccountAddress(crypto.PubkeyToAddress(key.PublicKey)), nil
}

// AttestorAddresses returns the addresses for the first n attestor indices,
// ready to seed a quorum.
func (k *SimpleKeyManager) AttestorAddresses(n uint32) ([]interfaces.AccountAddress, error) {
	addresses := make([]interfaces.AccountAddress, 0, n)
	for i := uint32(0); i < n; i++ {
		addr, err := k.AttestorAddress(i)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// SignMessageID produces the 65-byte [R || S || V] endorsement signature over
// the raw message ID digest expected by the attestation quorum.
func SignMessageID(key *ecdsa.PrivateKey, messageID interfaces.MessageID) ([]byte, error) {
	signature, err := crypto.Sign(messageID.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message id: %w", err)
	}
	return signature, nil
}

// SignerAddress returns the account address of a signing key.
func SignerAddress(key *ecdsa.PrivateKey) interfaces.AccountAddress {
	return interfaces.AccountAddress(crypto.PubkeyToAddress(key.PublicKey))
}
