// Copyright 2025 Certen Protocol
//
// ML validator: collects artefact references from a block, deduplicates,
// caps, calls the verifier, and enforces the verdicts.

package validation

import (
	"time"

	"github.com/certen/ml-consensus/internal/mlclient"
	"github.com/certen/ml-consensus/internal/types"
)

// MLConfig bounds the per-block verification cost.
type MLConfig struct {
	// MaxArtefactsPerBlock caps the number of distinct (aid, evidence_hash)
	// pairs verified per block.
	MaxArtefactsPerBlock int
}

// DefaultMLConfig returns the documented default of 1024.
func DefaultMLConfig() MLConfig {
	return MLConfig{MaxArtefactsPerBlock: 1024}
}

// ObserveFunc is invoked once per verifier call with the call's wall-clock
// duration, letting a metrics registry observe consensus_ml_auth_seconds
// without the validator importing a metrics package directly.
type ObserveFunc func(d time.Duration)

// MLValidator implements the ML-authenticity predicate: every newly
// registered artefact in a block must pass a verifier.Verify call.
type MLValidator struct {
	verifier mlclient.Verifier
	cfg      MLConfig
	observe  ObserveFunc
}

// NewMLValidator builds an MLValidator. observe may be nil.
func NewMLValidator(verifier mlclient.Verifier, cfg MLConfig, observe ObserveFunc) *MLValidator {
	return &MLValidator{verifier: verifier, cfg: cfg, observe: observe}
}

type dedupKey struct {
	aid          types.Aid
	evidenceHash types.EvidenceHash
}

func (v *MLValidator) Validate(block *types.Block) error {
	pairs := block.MLPairs()

	seen := make(map[dedupKey]struct{}, len(pairs))
	unique := make([]types.MLPair, 0, len(pairs))
	for _, p := range pairs {
		key := dedupKey{aid: p.Aid, evidenceHash: p.Evidence.EvidenceHash}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, p)
	}

	if len(unique) > v.cfg.MaxArtefactsPerBlock {
		return Invalidf("too many distinct artefacts: %d exceeds max_artefacts_per_block %d", len(unique), v.cfg.MaxArtefactsPerBlock)
	}

	for _, p := range unique {
		start := time.Now()
		verdict, err := v.verifier.Verify(p.Aid, p.Evidence)
		if v.observe != nil {
			v.observe(time.Since(start))
		}
		if err != nil {
			return &MLFailure{ValidationError: Customf(err, "ML authenticity check failed for aid %s", p.Aid.Hex())}
		}
		if !verdict.Ok {
			return &MLFailure{ValidationError: Invalidf("ML authenticity check failed for aid %s", p.Aid.Hex())}
		}
	}

	return nil
}
