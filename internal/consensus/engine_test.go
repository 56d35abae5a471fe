// Copyright 2025 Certen Protocol

package consensus

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/certen/ml-consensus/internal/canon"
	"github.com/certen/ml-consensus/internal/forkchoice"
	"github.com/certen/ml-consensus/internal/metrics"
	"github.com/certen/ml-consensus/internal/mlclient"
	"github.com/certen/ml-consensus/internal/proposer"
	"github.com/certen/ml-consensus/internal/store"
	"github.com/certen/ml-consensus/internal/types"
	"github.com/certen/ml-consensus/internal/validation"
)

func containsSubstring(s, substr string) bool { return strings.Contains(s, substr) }

func hashBlockForTest(b *types.Block) (types.BlockHash, error) { return canon.ComputeHash(b) }

func newTestMetricsRegistry() *metrics.Registry { return metrics.NewRegistry() }

func testCounterValue(r *metrics.Registry) float64 {
	return testutil.ToFloat64(r.Consensus.BlocksRejectedML)
}

// emptyTxPool always returns no transactions.
type emptyTxPool struct{}

func (emptyTxPool) SelectForBlock(int, int) []types.Transaction { return nil }

// listTxPool drains a fixed list of transactions once.
type listTxPool struct {
	txs []types.Transaction
}

func (p *listTxPool) SelectForBlock(maxTxs, _ int) []types.Transaction {
	if len(p.txs) > maxTxs {
		out := p.txs[:maxTxs]
		p.txs = p.txs[maxTxs:]
		return out
	}
	out := p.txs
	p.txs = nil
	return out
}

type alwaysOkVerifier struct{}

func (alwaysOkVerifier) Verify(types.Aid, types.EvidenceRef) (mlclient.Verdict, error) {
	return mlclient.Verdict{Ok: true}, nil
}

func newTestEngine(s store.BlockStore) *Engine {
	base := validation.NewBaseValidator(validation.BaseConfig{MaxBlockTxs: 10_000, MaxBlockSizeBytes: 1_000_000})
	ml := validation.NewMLValidator(alwaysOkVerifier{}, validation.DefaultMLConfig(), nil)
	combined := validation.NewCombinedValidator(base, ml)
	prop := proposer.NewProposer(proposer.Config{MaxBlockTxs: 10_000, MaxBlockSizeBytes: 1_000_000, AllowEmptyBlocks: true})
	fc := forkchoice.NewLongestChain()
	return New(s, combined, prop, fc, nil)
}

func dummyAccount(b byte) types.AccountId {
	var h types.Hash256
	for i := range h {
		h[i] = b
	}
	return types.AccountId(h)
}

func TestScenario1FirstBlockBootstrapsTip(t *testing.T) {
	s := store.NewMemStore()
	engine := newTestEngine(s)

	h, block, err := engine.ProposeBlock(dummyAccount(0x70), emptyTxPool{}, 1_700_000_000)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if block.Header.Height != 0 {
		t.Fatalf("expected height 0, got %d", block.Header.Height)
	}
	if block.Header.Parent != types.BlockHash(types.ZeroHash256) {
		t.Fatalf("expected zero parent hash")
	}
	tip, ok, err := s.Tip()
	if err != nil || !ok {
		t.Fatalf("tip: ok=%v err=%v", ok, err)
	}
	if tip != h {
		t.Fatalf("tip mismatch: %x vs %x", tip, h)
	}
}

func TestScenario2LongestChainPreservesIncumbentOnTies(t *testing.T) {
	s := store.NewMemStore()
	engine := newTestEngine(s)

	h0, _, err := engine.ProposeBlock(dummyAccount(0x70), emptyTxPool{}, 1_700_000_000)
	if err != nil {
		t.Fatalf("propose first: %v", err)
	}

	// A competing block at height 0, different timestamp => different hash.
	competing := &types.Block{
		Header: types.Header{
			Parent:    types.BlockHash(types.ZeroHash256),
			Height:    0,
			Timestamp: 1_700_000_001,
			Proposer:  dummyAccount(0x71),
		},
	}
	if _, err := engine.ImportBlock(competing); err != nil {
		t.Fatalf("import competing: %v", err)
	}

	tip, ok, err := s.Tip()
	if err != nil || !ok {
		t.Fatalf("tip: ok=%v err=%v", ok, err)
	}
	if tip != h0 {
		t.Fatalf("expected tip to remain %x, got %x", h0, tip)
	}

	if _, found, _ := s.GetBlock(h0); !found {
		t.Fatalf("expected original block retrievable")
	}
	competingHash, _ := computeHashForTest(competing)
	if _, found, _ := s.GetBlock(competingHash); !found {
		t.Fatalf("expected competing block retrievable")
	}
}

func TestScenario3LongestChainAdvancesOnHigherHeight(t *testing.T) {
	s := store.NewMemStore()
	engine := newTestEngine(s)

	h0, _, err := engine.ProposeBlock(dummyAccount(0x70), emptyTxPool{}, 1_700_000_000)
	if err != nil {
		t.Fatalf("propose first: %v", err)
	}
	competing := &types.Block{
		Header: types.Header{
			Parent:    types.BlockHash(types.ZeroHash256),
			Height:    0,
			Timestamp: 1_700_000_001,
			Proposer:  dummyAccount(0x71),
		},
	}
	competingHash, err := engine.ImportBlock(competing)
	if err != nil {
		t.Fatalf("import competing: %v", err)
	}

	h1, block1, err := engine.ProposeBlock(dummyAccount(0x70), emptyTxPool{}, 1_700_000_002)
	if err != nil {
		t.Fatalf("propose second: %v", err)
	}
	if block1.Header.Height != 1 {
		t.Fatalf("expected height 1, got %d", block1.Header.Height)
	}

	tip, ok, err := s.Tip()
	if err != nil || !ok {
		t.Fatalf("tip: ok=%v err=%v", ok, err)
	}
	if tip != h1 {
		t.Fatalf("expected tip to advance to %x, got %x", h1, tip)
	}
	if tip == h0 || tip == competingHash {
		t.Fatalf("tip should not equal a height-0 block")
	}
	if _, found, _ := s.GetBlock(competingHash); !found {
		t.Fatalf("expected competing height-0 block still retrievable")
	}
}

func TestScenario4DuplicateAidInOneBlockRejected(t *testing.T) {
	s := store.NewMemStore()
	engine := newTestEngine(s)

	aid := types.Aid(dummyAccount(0x99))
	tx1 := types.NewRegisterModelTx(types.RegisterModelTx{
		Owner: dummyAccount(1), Aid: aid,
		Evidence: types.EvidenceRef{SchemeID: "s", EvidenceHash: types.EvidenceHash(dummyAccount(2))},
	})
	tx2 := types.NewRegisterModelTx(types.RegisterModelTx{
		Owner: dummyAccount(3), Aid: aid,
		Evidence: types.EvidenceRef{SchemeID: "s", EvidenceHash: types.EvidenceHash(dummyAccount(4))},
	})

	pool := &listTxPool{txs: []types.Transaction{tx1, tx2}}
	_, _, err := engine.ProposeBlock(dummyAccount(0x70), pool, 1_700_000_000)
	if err == nil {
		t.Fatalf("expected duplicate-aid rejection")
	}
	if !containsSubstring(err.Error(), "duplicate Aid") {
		t.Fatalf("expected message to mention duplicate Aid, got %q", err.Error())
	}
	if s.Len() != 0 {
		t.Fatalf("expected store to remain empty, got %d blocks", s.Len())
	}
}

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(types.Aid, types.EvidenceRef) (mlclient.Verdict, error) {
	return mlclient.Verdict{Ok: false}, nil
}

func TestScenario5MLAuthenticityFailureRejectsBlock(t *testing.T) {
	s := store.NewMemStore()
	base := validation.NewBaseValidator(validation.BaseConfig{MaxBlockTxs: 10_000, MaxBlockSizeBytes: 1_000_000})
	ml := validation.NewMLValidator(rejectingVerifier{}, validation.DefaultMLConfig(), nil)
	combined := validation.NewCombinedValidator(base, ml)
	prop := proposer.NewProposer(proposer.Config{MaxBlockTxs: 10_000, MaxBlockSizeBytes: 1_000_000, AllowEmptyBlocks: true})
	fc := forkchoice.NewLongestChain()
	mreg := newTestMetricsRegistry()
	engine := New(s, combined, prop, fc, mreg)

	tx := types.NewRegisterModelTx(types.RegisterModelTx{
		Owner: dummyAccount(1), Aid: types.Aid(dummyAccount(5)),
		Evidence: types.EvidenceRef{SchemeID: "s", EvidenceHash: types.EvidenceHash(dummyAccount(6))},
	})
	pool := &listTxPool{txs: []types.Transaction{tx}}

	_, _, err := engine.ProposeBlock(dummyAccount(0x70), pool, 1_700_000_000)
	if err == nil {
		t.Fatalf("expected ML authenticity rejection")
	}
	if !containsSubstring(err.Error(), "ML authenticity check failed") {
		t.Fatalf("expected message to mention ML authenticity failure, got %q", err.Error())
	}
	if got := testCounterValue(mreg); got != 1 {
		t.Fatalf("expected consensus_blocks_rejected_ml to be 1, got %v", got)
	}
	if _, ok, _ := s.Tip(); ok {
		t.Fatalf("expected tip to remain unset")
	}
}

type cappingVerifier struct{ calls int }

func (v *cappingVerifier) Verify(types.Aid, types.EvidenceRef) (mlclient.Verdict, error) {
	v.calls++
	return mlclient.Verdict{Ok: true}, nil
}

func TestScenario6MLCapRejectsBeforeAnyVerifierCall(t *testing.T) {
	s := store.NewMemStore()
	base := validation.NewBaseValidator(validation.BaseConfig{MaxBlockTxs: 10_000, MaxBlockSizeBytes: 1_000_000})
	cv := &cappingVerifier{}
	ml := validation.NewMLValidator(cv, validation.MLConfig{MaxArtefactsPerBlock: 1}, nil)
	combined := validation.NewCombinedValidator(base, ml)
	prop := proposer.NewProposer(proposer.Config{MaxBlockTxs: 10_000, MaxBlockSizeBytes: 1_000_000, AllowEmptyBlocks: true})
	fc := forkchoice.NewLongestChain()
	engine := New(s, combined, prop, fc, nil)

	tx1 := types.NewRegisterModelTx(types.RegisterModelTx{
		Owner: dummyAccount(1), Aid: types.Aid(dummyAccount(7)),
		Evidence: types.EvidenceRef{SchemeID: "s", EvidenceHash: types.EvidenceHash(dummyAccount(8))},
	})
	tx2 := types.NewRegisterModelTx(types.RegisterModelTx{
		Owner: dummyAccount(1), Aid: types.Aid(dummyAccount(9)),
		Evidence: types.EvidenceRef{SchemeID: "s", EvidenceHash: types.EvidenceHash(dummyAccount(10))},
	})
	pool := &listTxPool{txs: []types.Transaction{tx1, tx2}}

	_, _, err := engine.ProposeBlock(dummyAccount(0x70), pool, 1_700_000_000)
	if err == nil {
		t.Fatalf("expected cap rejection")
	}
	if cv.calls != 0 {
		t.Fatalf("expected verifier not called before cap check, got %d calls", cv.calls)
	}
}

func computeHashForTest(b *types.Block) (types.BlockHash, error) {
	return hashBlockForTest(b)
}
