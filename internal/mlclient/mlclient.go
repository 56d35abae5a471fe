// Copyright 2025 Certen Protocol
//
// ML verifier interface: the abstract request/response contract for
// artefact authenticity checks, and VerifierError, the three-way failure
// taxonomy the core refuses to fail open on.

package mlclient

import (
	"fmt"

	"github.com/certen/ml-consensus/internal/types"
)

// Verdict is the result of a successful verify call. Only Ok is
// semantically load-bearing; the remaining fields are observability only.
type Verdict struct {
	Ok         bool
	TriggerAcc *float32
	FeatDist   *float32
	LogitStat  *float32
	LatencyMs  *uint64
}

// VerifierErrorKind tags the three ways a verify call can fail.
type VerifierErrorKind int

const (
	// KindTransport indicates connectivity or timeout failures.
	KindTransport VerifierErrorKind = iota + 1
	// KindProtocol indicates a malformed response body.
	KindProtocol
	// KindService indicates the verifier rejected the request
	// (HTTP status >= 400, or an equivalent explicit rejection).
	KindService
)

func (k VerifierErrorKind) String() string {
	switch k {
	case KindTransport:
		return "Transport"
	case KindProtocol:
		return "Protocol"
	case KindService:
		return "Service"
	default:
		return "Unknown"
	}
}

// VerifierError wraps the underlying cause with a taxonomy tag. All three
// kinds map to validation failure when encountered during block import.
type VerifierError struct {
	Kind    VerifierErrorKind
	Message string
	Cause   error
}

func (e *VerifierError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ml verifier %s error: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("ml verifier %s error: %s", e.Kind, e.Message)
}

func (e *VerifierError) Unwrap() error { return e.Cause }

func newError(kind VerifierErrorKind, msg string, cause error) *VerifierError {
	return &VerifierError{Kind: kind, Message: msg, Cause: cause}
}

// Verifier is the abstract capability the ML validator calls against.
type Verifier interface {
	Verify(aid types.Aid, evidence types.EvidenceRef) (Verdict, error)
}
