// Copyright 2025 Certen Protocol
//
// Canonical, deterministic, bit-exact binary encoding for the block data
// model. This format is externally-tagged and schema-driven: every
// collection serializes in in-memory order, every variant carries an
// explicit tag byte, and every float is encoded by its raw bit pattern so
// that +0.0 and -0.0 (and NaN payloads) round-trip byte-for-byte.
//
// This is hand-rolled rather than routed through a generic reflection-based
// codec because no third-party binary-codec dependency in this corpus
// offers bit-exact float encoding with an externally-tagged union layout;
// see DESIGN.md for the full justification.
package canon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/certen/ml-consensus/internal/types"
)

// writer accumulates canonical bytes. All multi-byte integers are
// big-endian; all variable-length fields are length-prefixed with a
// uint32.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) byte(b byte) { w.buf.WriteByte(b) }

func (w *writer) uint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.buf.Write(tmp[:])
}

func (w *writer) uint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf.Write(tmp[:])
}

func (w *writer) float32(v float32) {
	w.uint32(math.Float32bits(v))
}

func (w *writer) fixed(b []byte) { w.buf.Write(b) }

func (w *writer) bytesField(b []byte) {
	w.uint32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *writer) stringField(s string) {
	w.bytesField([]byte(s))
}

// optionalBytes writes a one-byte presence flag followed by the bytes
// field when present.
func (w *writer) optionalBytes(b []byte, present bool) {
	if present {
		w.byte(1)
		w.bytesField(b)
	} else {
		w.byte(0)
	}
}

func (w *writer) optionalString(s *string) {
	if s != nil {
		w.byte(1)
		w.stringField(*s)
	} else {
		w.byte(0)
	}
}

func (w *writer) hash256(h types.Hash256) { w.fixed(h[:]) }

func writeEvidenceRef(w *writer, e types.EvidenceRef) {
	w.stringField(e.SchemeID)
	w.hash256(types.Hash256(e.EvidenceHash))
	w.float32(e.WmProfile.TauInput)
	w.float32(e.WmProfile.TauFeat)
	w.float32(e.WmProfile.LogitBandLow)
	w.float32(e.WmProfile.LogitBandHigh)
}

func writeTransaction(w *writer, tx types.Transaction) error {
	w.byte(byte(tx.Kind))
	switch tx.Kind {
	case types.TxKindRegisterModel:
		if tx.Register == nil {
			return fmt.Errorf("canon: RegisterModel tx missing body")
		}
		t := tx.Register
		w.hash256(types.Hash256(t.Owner))
		w.hash256(types.Hash256(t.Aid))
		writeEvidenceRef(w, t.Evidence)
		w.uint64(t.Fee)
		w.uint64(t.Nonce)
		w.bytesField(t.Signature)
	case types.TxKindUseModel:
		if tx.Use == nil {
			return fmt.Errorf("canon: UseModel tx missing body")
		}
		t := tx.Use
		w.hash256(types.Hash256(t.Caller))
		w.hash256(types.Hash256(t.Aid))
		w.stringField(t.Metadata.Task)
		w.optionalString(t.Metadata.Version)
		w.uint64(t.Fee)
		w.uint64(t.Nonce)
		w.bytesField(t.Signature)
	case types.TxKindTransfer:
		if tx.Transfer == nil {
			return fmt.Errorf("canon: Transfer tx missing body")
		}
		t := tx.Transfer
		w.hash256(types.Hash256(t.From))
		w.hash256(types.Hash256(t.To))
		w.uint64(t.Amount)
		w.uint64(t.Fee)
		w.uint64(t.Nonce)
		w.bytesField(t.Signature)
	default:
		return fmt.Errorf("canon: unknown transaction kind %d", tx.Kind)
	}
	return nil
}

func writeHeader(w *writer, h types.Header) {
	w.hash256(types.Hash256(h.Parent))
	w.uint64(h.Height)
	w.uint64(h.Timestamp)
	w.hash256(types.Hash256(h.Proposer))
	w.optionalBytes(h.PosProof, h.PosProof != nil)
}

// EncodeTransaction returns the canonical bytes of a single transaction.
func EncodeTransaction(tx types.Transaction) ([]byte, error) {
	w := &writer{}
	if err := writeTransaction(w, tx); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

// EncodeBlock returns the canonical bytes of a block. It is total on all
// well-formed in-memory blocks and deterministic: equal blocks produce
// byte-identical output.
func EncodeBlock(b *types.Block) ([]byte, error) {
	w := &writer{}
	writeHeader(w, b.Header)
	w.uint32(uint32(len(b.Txs)))
	for i, tx := range b.Txs {
		if err := writeTransaction(w, tx); err != nil {
			return nil, fmt.Errorf("canon: encoding tx %d: %w", i, err)
		}
	}
	return w.buf.Bytes(), nil
}

// ComputeHash returns H(canonical_bytes(block)).
func ComputeHash(b *types.Block) (types.BlockHash, error) {
	enc, err := EncodeBlock(b)
	if err != nil {
		return types.BlockHash{}, err
	}
	return types.BlockHash(types.ComputeHash256(enc)), nil
}

// MustComputeHash is ComputeHash for callers that have already established
// the block is well-formed (e.g. one just built by the proposer in this
// process). It panics on encoding failure, which can only happen given a
// malformed in-memory union value (a programmer error, not a runtime one).
func MustComputeHash(b *types.Block) types.BlockHash {
	h, err := ComputeHash(b)
	if err != nil {
		panic(fmt.Sprintf("canon: block failed to encode: %v", err))
	}
	return h
}
