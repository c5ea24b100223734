// Package keymanager manages attestor signing key material.
//
// SimpleKeyManager derives secp256k1 attestor keys deterministically from a
// master seed, which keeps development and test setups reproducible: the
// quorum is seeded with AttestorAddresses(n) and each attestor daemon derives
// its own key from the shared seed and its index.
//
// The master seed itself can be split across relay operators with Shamir
// secret sharing (SplitSeed/RecoverSeed); individual shares are encrypted to
// operator public keys for distribution. Attestor daemons store their derived
// key sealed under a passphrase, see cryptoutils.SealWithPassphrase.
package keymanager
