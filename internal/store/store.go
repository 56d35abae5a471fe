// Copyright 2025 Certen Protocol
//
// Block store abstraction: persist blocks keyed by content hash, and a
// single mutable tip pointer.

package store

import (
	"errors"

	"github.com/certen/ml-consensus/internal/types"
)

// ErrCorruptedMeta is returned when the tip metadata entry exists but is
// not exactly 32 bytes.
var ErrCorruptedMeta = errors.New("store: corrupted tip metadata")

// BlockStore is the capability the consensus engine is parameterized over.
// Implementations: MemStore (tests, small devnets) and KVStore (persistent,
// cometbft-db-backed).
type BlockStore interface {
	// GetBlock returns the stored block with the given hash and true, or
	// (nil, false, nil) if absent. A non-nil error indicates a storage
	// failure distinct from absence.
	GetBlock(hash types.BlockHash) (*types.Block, bool, error)

	// PutBlock computes h = compute_hash(block) and writes h -> canonical
	// bytes. Overwriting with equal content is a no-op in effect.
	PutBlock(block *types.Block) error

	// Tip returns the current tip hash and true, or (zero, false, nil) if
	// unset. ErrCorruptedMeta is returned if the stored tip entry is
	// malformed.
	Tip() (types.BlockHash, bool, error)

	// SetTip atomically replaces the tip pointer.
	SetTip(hash types.BlockHash) error
}
