// Copyright 2025 Certen Protocol

package types

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// DeriveAccountID derives an AccountId from a raw public key encoding using
// Keccak-256, an alternate derivation path to the default SHA-256-based
// ComputeHash256 used for block hashing. Kept distinct from the canonical
// block-hash path: this is an account-identity convention, not part of the
// encoding format's compatibility surface.
func DeriveAccountID(pubKey []byte) AccountId {
	h := ethcrypto.Keccak256Hash(pubKey)
	return AccountId(Hash256(h))
}
