package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const sealSaltSize = 16

// deriveSealKey derives a 32-byte AES key from a passphrase using Argon2id.
// Parameters: time=1, memory=64MiB, threads=4.
func deriveSealKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// SealWithPassphrase encrypts key material under a passphrase using Argon2id
// key derivation and AES-GCM. The output embeds the salt and nonce:
// [salt (16 bytes)][nonce (12 bytes)][ciphertext].
func SealWithPassphrase(passphrase, data []byte) ([]byte, error) {
	salt := make([]byte, sealSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aesBlock, err := aes.NewCipher(deriveSealKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(aesBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := make([]byte, 0, sealSaltSize+len(nonce)+len(data)+aesGCM.Overhead())
	sealed = append(sealed, salt...)
	sealed = append(sealed, nonce...)
	sealed = append(sealed, aesGCM.Seal(nil, nonce, data, nil)...)

	return sealed, nil
}

// OpenWithPassphrase decrypts key material sealed by SealWithPassphrase.
func OpenWithPassphrase(passphrase, sealed []byte) ([]byte, error) {
	if len(sealed) < sealSaltSize+12 {
		return nil, errors.New("sealed data too short")
	}

	salt := sealed[:sealSaltSize]

	aesBlock, err := aes.NewCipher(deriveSealKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(aesBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := sealed[sealSaltSize : sealSaltSize+aesGCM.NonceSize()]
	ciphertext := sealed[sealSaltSize+aesGCM.NonceSize():]

	data, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt sealed key: %w", err)
	}

	return data, nil
}
