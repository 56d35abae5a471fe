// Copyright 2025 Certen Protocol
//
// BlockValidator capability: any value exposing Validate(block) can be
// substituted into the composition. Modeled as an interface, composed by
// value with fail-fast sequencing — not as inheritance.

package validation

import "github.com/certen/ml-consensus/internal/types"

// BlockValidator is the capability the consensus engine composes.
type BlockValidator interface {
	Validate(block *types.Block) error
}

// AcceptAllValidator accepts every block unconditionally. Useful in tests
// and scenarios that want to isolate other pipeline stages.
type AcceptAllValidator struct{}

func (AcceptAllValidator) Validate(*types.Block) error { return nil }

// CombinedValidator runs a base validator then an ML validator. The first
// failure short-circuits; there is no shared mutable state between the
// two stages.
type CombinedValidator struct {
	Base BlockValidator
	ML   BlockValidator
}

// NewCombinedValidator builds a CombinedValidator from the two stages.
func NewCombinedValidator(base, ml BlockValidator) *CombinedValidator {
	return &CombinedValidator{Base: base, ML: ml}
}

func (c *CombinedValidator) Validate(block *types.Block) error {
	if err := c.Base.Validate(block); err != nil {
		return err
	}
	return c.ML.Validate(block)
}
