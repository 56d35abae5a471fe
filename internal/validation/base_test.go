// Copyright 2025 Certen Protocol

package validation

import (
	"testing"

	"github.com/certen/ml-consensus/internal/canon"
	"github.com/certen/ml-consensus/internal/types"
)

func dummyHash(b byte) types.Hash256 {
	var h types.Hash256
	for i := range h {
		h[i] = b
	}
	return h
}

func dummyBlock(txs ...types.Transaction) *types.Block {
	return &types.Block{
		Header: types.Header{
			Parent:    types.BlockHash(dummyHash(0)),
			Height:    1,
			Timestamp: 1_700_000_000,
			Proposer:  types.AccountId(dummyHash(1)),
		},
		Txs: txs,
	}
}

func registerTx(aid byte) types.Transaction {
	return types.NewRegisterModelTx(types.RegisterModelTx{
		Owner: types.AccountId(dummyHash(2)),
		Aid:   types.Aid(dummyHash(aid)),
		Evidence: types.EvidenceRef{
			SchemeID:     "s",
			EvidenceHash: types.EvidenceHash(dummyHash(3)),
		},
	})
}

func TestBaseValidatorAcceptsSmallBlock(t *testing.T) {
	v := NewBaseValidator(BaseConfig{MaxBlockTxs: 10, MaxBlockSizeBytes: 1_000_000})
	block := dummyBlock(registerTx(1), registerTx(2))
	if err := v.Validate(block); err != nil {
		t.Fatalf("expected accept, got %v", err)
	}
}

func TestBaseValidatorAcceptsEmptyBlock(t *testing.T) {
	v := NewBaseValidator(BaseConfig{MaxBlockTxs: 0, MaxBlockSizeBytes: 1_000_000})
	block := dummyBlock()
	if err := v.Validate(block); err != nil {
		t.Fatalf("expected accept for empty block, got %v", err)
	}
}

func TestBaseValidatorRejectsTooManyTxs(t *testing.T) {
	v := NewBaseValidator(BaseConfig{MaxBlockTxs: 1, MaxBlockSizeBytes: 1_000_000})
	block := dummyBlock(registerTx(1), registerTx(2))
	err := v.Validate(block)
	if err == nil {
		t.Fatalf("expected rejection")
	}
}

func TestBaseValidatorBoundaryExactlyMaxTxsPasses(t *testing.T) {
	v := NewBaseValidator(BaseConfig{MaxBlockTxs: 2, MaxBlockSizeBytes: 1_000_000})
	block := dummyBlock(registerTx(1), registerTx(2))
	if err := v.Validate(block); err != nil {
		t.Fatalf("expected accept at exactly max_block_txs, got %v", err)
	}
}

func TestBaseValidatorRejectsDuplicateAidsInBlock(t *testing.T) {
	v := NewBaseValidator(BaseConfig{MaxBlockTxs: 10, MaxBlockSizeBytes: 1_000_000})
	block := dummyBlock(registerTx(5), registerTx(5))
	err := v.Validate(block)
	if err == nil {
		t.Fatalf("expected rejection for duplicate aid")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if !contains(ve.Message, "duplicate Aid") {
		t.Fatalf("expected message to mention duplicate Aid, got %q", ve.Message)
	}
}

func TestBaseValidatorRejectsOversizedBlock(t *testing.T) {
	v := NewBaseValidator(BaseConfig{MaxBlockTxs: 10, MaxBlockSizeBytes: 1})
	block := dummyBlock(registerTx(1))
	err := v.Validate(block)
	if err == nil {
		t.Fatalf("expected rejection for oversized block")
	}
}

func TestBaseValidatorBoundaryExactlyMaxSizeBytesPasses(t *testing.T) {
	block := dummyBlock(registerTx(1), registerTx(2))
	encoded, err := canon.EncodeBlock(block)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	exact := len(encoded)

	accept := NewBaseValidator(BaseConfig{MaxBlockTxs: 10, MaxBlockSizeBytes: exact})
	if err := accept.Validate(block); err != nil {
		t.Fatalf("expected accept at exactly max_block_size_bytes, got %v", err)
	}

	reject := NewBaseValidator(BaseConfig{MaxBlockTxs: 10, MaxBlockSizeBytes: exact - 1})
	if err := reject.Validate(block); err == nil {
		t.Fatalf("expected rejection one byte over max_block_size_bytes")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
