// Copyright 2025 Certen Protocol
//
// Proposer: builds a candidate block on top of the current tip, pulling a
// bounded batch from a transaction pool. Stateless with respect to the
// chain; it does not validate or persist.

package proposer

import (
	"log"
	"os"

	"github.com/certen/ml-consensus/internal/store"
	"github.com/certen/ml-consensus/internal/types"
)

// TxPool is the external transaction pool contract the core consumes.
// select_for_block is destructive: selected transactions are considered
// taken from the pool.
type TxPool interface {
	SelectForBlock(maxTxs, maxBytes int) []types.Transaction
}

// Config bounds what a proposed block may contain.
type Config struct {
	MaxBlockTxs       int
	MaxBlockSizeBytes int
	// AllowEmptyBlocks is carried structurally: the proposer still
	// produces an empty block when disallowed and the pool is empty,
	// leaving the decision to skip proposing to the host loop.
	AllowEmptyBlocks bool
}

// Proposer builds candidate blocks. It holds no chain state itself.
type Proposer struct {
	cfg    Config
	logger *log.Logger
}

// NewProposer builds a Proposer from cfg.
func NewProposer(cfg Config) *Proposer {
	return &Proposer{
		cfg:    cfg,
		logger: log.New(os.Stdout, "[Proposer] ", log.LstdFlags|log.Lmicroseconds),
	}
}

// BuildBlock assembles a candidate block on top of store's current tip.
func (p *Proposer) BuildBlock(s store.BlockStore, proposerID types.AccountId, pool TxPool, timestamp uint64) (*types.Block, error) {
	parent := types.BlockHash(types.ZeroHash256)
	nextHeight := uint64(0)

	tip, ok, err := s.Tip()
	if err != nil {
		return nil, err
	}
	if ok {
		tipBlock, found, err := s.GetBlock(tip)
		if err != nil {
			return nil, err
		}
		if found {
			parent = tip
			nextHeight = tipBlock.Header.Height + 1
		} else {
			// Recovery policy, not a correctness claim: a tip that
			// points at an absent block is treated as if there were no
			// tip at all. Surfaced as a diagnostic rather than silently
			// hidden.
			p.logger.Printf("tip %s points to a missing block; treating as genesis", tip.Hex())
		}
	}

	txs := pool.SelectForBlock(p.cfg.MaxBlockTxs, p.cfg.MaxBlockSizeBytes)

	header := types.Header{
		Parent:    parent,
		Height:    nextHeight,
		Timestamp: timestamp,
		Proposer:  proposerID,
		PosProof:  nil,
	}

	return &types.Block{Header: header, Txs: txs}, nil
}
