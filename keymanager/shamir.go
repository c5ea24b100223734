package keymanager

import (
	"errors"
	"fmt"

	"github.com/hashicorp/vault/shamir"

	"github.com/ruteri/message-relay-backend/cryptoutils"
)

// SplitSeed splits a master seed into n Shamir shares, any k of which can
// reconstruct it. Used to distribute custody of a development seed across
// relay operators.
func SplitSeed(seed []byte, n, k int) ([][]byte, error) {
	if len(seed) < 32 {
		return nil, errors.New("master seed must be at least 32 bytes")
	}

	shares, err := shamir.Split(seed, n, k)
	if err != nil {
		return nil, fmt.Errorf("failed to split seed: %w", err)
	}
	return shares, nil
}

// RecoverSeed reconstructs a master seed from at least k Shamir shares.
func RecoverSeed(shares [][]byte) ([]byte, error) {
	if len(shares) < 2 {
		return nil, errors.New("at least two shares are required")
	}

	seed, err := shamir.Combine(shares)
	if err != nil {
		return nil, fmt.Errorf("failed to recover seed: %w", err)
	}
	return seed, nil
}

// EncryptShareForOperator encrypts a Shamir share to an operator's ECDSA
// public key PEM for distribution.
func EncryptShareForOperator(operatorPubkeyPEM, share []byte) ([]byte, error) {
	return cryptoutils.EncryptWithPublicKey(operatorPubkeyPEM, share)
}

// DecryptShare decrypts a distributed share with the operator's private key PEM.
func DecryptShare(operatorPrivkeyPEM, encryptedShare []byte) ([]byte, error) {
	return cryptoutils.DecryptWithPrivateKey(operatorPrivkeyPEM, encryptedShare)
}
