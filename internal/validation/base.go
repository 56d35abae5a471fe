// Copyright 2025 Certen Protocol
//
// Base validator: deterministic, local structural checks over a block.
// Checks run in order and fail fast: tx count, serialized size, then
// duplicate RegisterModel Aid.

package validation

import (
	"github.com/certen/ml-consensus/internal/canon"
	"github.com/certen/ml-consensus/internal/types"
)

// BaseConfig bounds the structural checks.
type BaseConfig struct {
	MaxBlockTxs       int
	MaxBlockSizeBytes int
}

// BaseValidator implements three structural checks in order: transaction
// count, serialized size, duplicate RegisterModel Aid. Deterministic,
// side-effect-free, O(|block|) plus one serialization pass for size.
type BaseValidator struct {
	cfg BaseConfig
}

// NewBaseValidator builds a BaseValidator from cfg.
func NewBaseValidator(cfg BaseConfig) *BaseValidator {
	return &BaseValidator{cfg: cfg}
}

func (v *BaseValidator) Validate(block *types.Block) error {
	if len(block.Txs) > v.cfg.MaxBlockTxs {
		return Invalidf("too many transactions: %d exceeds max_block_txs %d", len(block.Txs), v.cfg.MaxBlockTxs)
	}

	encoded, err := canon.EncodeBlock(block)
	if err != nil {
		return Customf(err, "failed to serialize block for size check")
	}
	if len(encoded) > v.cfg.MaxBlockSizeBytes {
		return Invalidf("block too large: %d bytes exceeds max_block_size_bytes %d", len(encoded), v.cfg.MaxBlockSizeBytes)
	}

	seen := make(map[types.Aid]struct{}, len(block.Txs))
	for _, tx := range block.Txs {
		if tx.Kind != types.TxKindRegisterModel || tx.Register == nil {
			continue
		}
		aid := tx.Register.Aid
		if _, dup := seen[aid]; dup {
			return Invalidf("duplicate Aid %s across RegisterModel transactions in one block", aid.Hex())
		}
		seen[aid] = struct{}{}
	}

	return nil
}
