// Copyright 2025 Certen Protocol
//
// Fork choice: decides whether a newly imported block should replace the
// current tip. Longest-chain-by-height, deterministic and total. No
// chain-work computation, no timestamp tiebreak.

package forkchoice

import (
	"log"
	"os"

	"github.com/certen/ml-consensus/internal/store"
	"github.com/certen/ml-consensus/internal/types"
)

// ForkChoice decides whether candidate should become the new tip, given
// the store (not yet containing candidate) and the current tip hash.
type ForkChoice interface {
	ShouldUpdateTip(s store.BlockStore, currentTip *types.BlockHash, candidate *types.Block) (bool, error)
}

// LongestChain implements the longest-chain-by-height rule:
//   - current tip absent => accept;
//   - candidate height strictly greater than current tip block's height
//     => accept;
//   - equal or lower heights => reject (ties preserve the incumbent);
//   - current tip block cannot be loaded => accept (corruption recovery).
type LongestChain struct {
	logger *log.Logger
}

// NewLongestChain builds the default fork-choice rule.
func NewLongestChain() *LongestChain {
	return &LongestChain{logger: log.New(os.Stdout, "[ForkChoice] ", log.LstdFlags|log.Lmicroseconds)}
}

func (f *LongestChain) ShouldUpdateTip(s store.BlockStore, currentTip *types.BlockHash, candidate *types.Block) (bool, error) {
	if currentTip == nil {
		return true, nil
	}

	tipBlock, found, err := s.GetBlock(*currentTip)
	if err != nil {
		return false, err
	}
	if !found {
		f.logger.Printf("current tip %s unloadable; accepting candidate as corruption recovery", currentTip.Hex())
		return true, nil
	}

	return candidate.Header.Height > tipBlock.Header.Height, nil
}
