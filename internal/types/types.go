// Copyright 2025 Certen Protocol
//
// Core data model: digests and strongly-typed identifiers for the
// ML-authenticity consensus core.

package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// HashLen is the fixed digest length used throughout the core.
const HashLen = 32

// Hash256 is a fixed 32-byte digest. All identifiers below are thin
// wrappers around it.
type Hash256 [HashLen]byte

// ZeroHash256 is the all-zero digest used as the genesis parent hash.
var ZeroHash256 = Hash256{}

// ComputeHash256 hashes an arbitrary byte string into a Hash256.
func ComputeHash256(data []byte) Hash256 {
	return Hash256(sha256.Sum256(data))
}

// Bytes returns a copy of the digest as a byte slice.
func (h Hash256) Bytes() []byte {
	out := make([]byte, HashLen)
	copy(out, h[:])
	return out
}

// Hex returns the lowercase hex encoding of the digest, no prefix.
func (h Hash256) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash256) String() string { return h.Hex() }

// Hash256FromBytes builds a Hash256 from a byte slice, requiring an exact
// length match.
func Hash256FromBytes(b []byte) (Hash256, error) {
	var h Hash256
	if len(b) != HashLen {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHashLength, HashLen, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Hash256FromHex parses a hex-encoded digest, requiring an exact length
// match after decoding.
func Hash256FromHex(s string) (Hash256, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash256{}, fmt.Errorf("hash256: invalid hex: %w", err)
	}
	return Hash256FromBytes(b)
}

// ErrInvalidHashLength is returned by any decoder that encounters a digest
// field of the wrong length.
var ErrInvalidHashLength = errors.New("types: invalid digest length")

// AccountId is a digest derived from a public key encoding. Opaque;
// equality and hashing are byte equality on the digest.
type AccountId Hash256

func (a AccountId) Bytes() []byte { return Hash256(a).Bytes() }
func (a AccountId) Hex() string   { return Hash256(a).Hex() }

// Aid is the artefact identifier: the content hash of a canonical encoding
// of a model artefact.
type Aid Hash256

func (a Aid) Bytes() []byte { return Hash256(a).Bytes() }
func (a Aid) Hex() string   { return Hash256(a).Hex() }

// EvidenceHash is a digest of an off-chain watermark-evidence payload.
type EvidenceHash Hash256

func (e EvidenceHash) Bytes() []byte { return Hash256(e).Bytes() }
func (e EvidenceHash) Hex() string   { return Hash256(e).Hex() }

// BlockHash is a Hash256 computed over the canonical encoding of a block.
type BlockHash Hash256

func (b BlockHash) Bytes() []byte { return Hash256(b).Bytes() }
func (b BlockHash) Hex() string   { return Hash256(b).Hex() }

// WmProfile carries detector thresholds and band bounds, uninterpreted by
// the core. Equality for block-hashing purposes is byte equality on the
// encoded bit pattern, not IEEE float equality (see ComputeHash).
type WmProfile struct {
	TauInput      float32
	TauFeat       float32
	LogitBandLow  float32
	LogitBandHigh float32
}

// EvidenceRef names a watermarking scheme and the evidence it attests.
type EvidenceRef struct {
	SchemeID     string
	EvidenceHash EvidenceHash
	WmProfile    WmProfile
}

// Signature is an opaque, scheme-specific byte string. Not verified by the
// core.
type Signature []byte

// TxKind tags the variant of a Transaction.
type TxKind uint8

const (
	TxKindRegisterModel TxKind = iota + 1
	TxKindUseModel
	TxKindTransfer
)

func (k TxKind) String() string {
	switch k {
	case TxKindRegisterModel:
		return "RegisterModel"
	case TxKindUseModel:
		return "UseModel"
	case TxKindTransfer:
		return "Transfer"
	default:
		return fmt.Sprintf("TxKind(%d)", uint8(k))
	}
}

// ModelUseMetadata accompanies a UseModel transaction.
type ModelUseMetadata struct {
	Task    string
	Version *string // optional
}

// RegisterModelTx registers a new model artefact on-chain.
type RegisterModelTx struct {
	Owner     AccountId
	Aid       Aid
	Evidence  EvidenceRef
	Fee       uint64
	Nonce     uint64
	Signature Signature
}

// UseModelTx records the invocation of a previously registered artefact.
type UseModelTx struct {
	Caller    AccountId
	Aid       Aid
	Metadata  ModelUseMetadata
	Fee       uint64
	Nonce     uint64
	Signature Signature
}

// TransferTx moves value between accounts. Effects are out of scope for
// this core; the transaction is carried structurally only.
type TransferTx struct {
	From      AccountId
	To        AccountId
	Amount    uint64
	Fee       uint64
	Nonce     uint64
	Signature Signature
}

// Transaction is a tagged union over the three transaction variants.
// Exactly one of the pointer fields matching Kind is non-nil.
type Transaction struct {
	Kind     TxKind
	Register *RegisterModelTx
	Use      *UseModelTx
	Transfer *TransferTx
}

// NewRegisterModelTx builds a Transaction wrapping a RegisterModelTx.
func NewRegisterModelTx(tx RegisterModelTx) Transaction {
	return Transaction{Kind: TxKindRegisterModel, Register: &tx}
}

// NewUseModelTx builds a Transaction wrapping a UseModelTx.
func NewUseModelTx(tx UseModelTx) Transaction {
	return Transaction{Kind: TxKindUseModel, Use: &tx}
}

// NewTransferTx builds a Transaction wrapping a TransferTx.
func NewTransferTx(tx TransferTx) Transaction {
	return Transaction{Kind: TxKindTransfer, Transfer: &tx}
}

// Header carries block metadata.
type Header struct {
	Parent    BlockHash
	Height    uint64
	Timestamp uint64 // seconds since Unix epoch
	Proposer  AccountId
	PosProof  []byte // optional; nil means absent
}

// Block is a header plus an ordered sequence of transactions.
type Block struct {
	Header Header
	Txs    []Transaction
}

// ArtefactMetadata describes a registered artefact. Defined by the data
// model but not persisted by the core's store in this spec (the full
// state machine is out of scope).
type ArtefactMetadata struct {
	Aid          Aid
	Owner        AccountId
	Evidence     EvidenceRef
	RegisteredAt uint64
}

// MLPairs extracts (Aid, EvidenceRef) from every RegisterModel transaction
// in the block, in block order.
func (b *Block) MLPairs() []MLPair {
	pairs := make([]MLPair, 0, len(b.Txs))
	for _, tx := range b.Txs {
		if tx.Kind == TxKindRegisterModel && tx.Register != nil {
			pairs = append(pairs, MLPair{Aid: tx.Register.Aid, Evidence: tx.Register.Evidence})
		}
	}
	return pairs
}

// MLPair is an (artefact id, evidence reference) pair extracted from a
// RegisterModel transaction.
type MLPair struct {
	Aid      Aid
	Evidence EvidenceRef
}
