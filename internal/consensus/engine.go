// Copyright 2025 Certen Protocol
//
// Consensus engine: orchestrates propose -> validate -> persist ->
// fork-choice -> tip update. The engine transitively owns the store and
// the validators; it is the unique mutator of the tip. The core is
// synchronous and single-owner — callers serialize access, typically by
// holding the engine behind a mutex.

package consensus

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/certen/ml-consensus/internal/canon"
	"github.com/certen/ml-consensus/internal/forkchoice"
	"github.com/certen/ml-consensus/internal/metrics"
	"github.com/certen/ml-consensus/internal/proposer"
	"github.com/certen/ml-consensus/internal/store"
	"github.com/certen/ml-consensus/internal/types"
	"github.com/certen/ml-consensus/internal/validation"
)

// Engine wires together a store, a composed validator, a proposer, and a
// fork-choice rule. It is the unique mutator of the store's tip.
type Engine struct {
	store      store.BlockStore
	validator  validation.BlockValidator
	proposer   *proposer.Proposer
	forkChoice forkchoice.ForkChoice
	metrics    *metrics.Registry // optional; nil disables observation
	logger     *log.Logger
}

// New builds an Engine. metricsRegistry may be nil.
func New(s store.BlockStore, validator validation.BlockValidator, p *proposer.Proposer, fc forkchoice.ForkChoice, metricsRegistry *metrics.Registry) *Engine {
	return &Engine{
		store:      s,
		validator:  validator,
		proposer:   p,
		forkChoice: fc,
		metrics:    metricsRegistry,
		logger:     log.New(os.Stdout, "[ConsensusEngine] ", log.LstdFlags|log.Lmicroseconds),
	}
}

// ImportBlock validates, hashes, persists, and conditionally tip-selects
// block. Ordering: fork-choice is evaluated before the put so it can
// compare heights against the previous tip block (the new block is not
// yet in the store); the put happens before the tip update so a tip
// pointer never references an absent block.
func (e *Engine) ImportBlock(block *types.Block) (types.BlockHash, error) {
	if err := e.validator.Validate(block); err != nil {
		var mlFail *validation.MLFailure
		if e.metrics != nil && errors.As(err, &mlFail) {
			e.metrics.Consensus.BlocksRejectedML.Inc()
		}
		return types.BlockHash{}, err
	}

	h, err := canon.ComputeHash(block)
	if err != nil {
		return types.BlockHash{}, err
	}

	currentTip, hasTip, err := e.store.Tip()
	if err != nil {
		return types.BlockHash{}, err
	}

	var currentTipPtr *types.BlockHash
	if hasTip {
		currentTipPtr = &currentTip
	}

	update, err := e.forkChoice.ShouldUpdateTip(e.store, currentTipPtr, block)
	if err != nil {
		return types.BlockHash{}, err
	}

	if err := e.store.PutBlock(block); err != nil {
		return types.BlockHash{}, err
	}

	if update {
		if err := e.store.SetTip(h); err != nil {
			// The block is already persisted; an orphaned, unreferenced
			// block is harmless per the store's invariants. We do not
			// roll back the successful put.
			return types.BlockHash{}, err
		}
	}

	return h, nil
}

// ProposeBlock builds a candidate block via the proposer and imports it.
func (e *Engine) ProposeBlock(proposerID types.AccountId, pool proposer.TxPool, timestamp uint64) (types.BlockHash, *types.Block, error) {
	start := time.Now()

	block, err := e.proposer.BuildBlock(e.store, proposerID, pool, timestamp)
	if err != nil {
		return types.BlockHash{}, nil, err
	}

	h, err := e.ImportBlock(block)
	if err != nil {
		return types.BlockHash{}, nil, err
	}

	if e.metrics != nil {
		e.metrics.Consensus.BlockValidationSeconds.Observe(time.Since(start).Seconds())
	}

	return h, block, nil
}
