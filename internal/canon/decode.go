// Copyright 2025 Certen Protocol

package canon

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/certen/ml-consensus/internal/types"
)

// reader consumes canonical bytes written by writer. It tracks a cursor
// into the backing slice rather than copying on every read.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("canon: unexpected end of input (need %d bytes at offset %d, have %d total)", n, r.pos, len(r.buf))
	}
	return nil
}

func (r *reader) byte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) float32() (float32, error) {
	v, err := r.uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) fixed(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *reader) hash256() (types.Hash256, error) {
	b, err := r.fixed(types.HashLen)
	if err != nil {
		return types.Hash256{}, err
	}
	var h types.Hash256
	copy(h[:], b)
	return h, nil
}

func (r *reader) bytesField() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	return r.fixed(int(n))
}

func (r *reader) stringField() (string, error) {
	b, err := r.bytesField()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) optionalBytes() ([]byte, error) {
	flag, err := r.byte()
	if err != nil {
		return nil, err
	}
	if flag == 0 {
		return nil, nil
	}
	return r.bytesField()
}

func (r *reader) optionalString() (*string, error) {
	flag, err := r.byte()
	if err != nil {
		return nil, err
	}
	if flag == 0 {
		return nil, nil
	}
	s, err := r.stringField()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func readEvidenceRef(r *reader) (types.EvidenceRef, error) {
	var e types.EvidenceRef
	scheme, err := r.stringField()
	if err != nil {
		return e, err
	}
	evHash, err := r.hash256()
	if err != nil {
		return e, err
	}
	tauInput, err := r.float32()
	if err != nil {
		return e, err
	}
	tauFeat, err := r.float32()
	if err != nil {
		return e, err
	}
	low, err := r.float32()
	if err != nil {
		return e, err
	}
	high, err := r.float32()
	if err != nil {
		return e, err
	}
	e.SchemeID = scheme
	e.EvidenceHash = types.EvidenceHash(evHash)
	e.WmProfile = types.WmProfile{
		TauInput: tauInput, TauFeat: tauFeat, LogitBandLow: low, LogitBandHigh: high,
	}
	return e, nil
}

func readTransaction(r *reader) (types.Transaction, error) {
	kindByte, err := r.byte()
	if err != nil {
		return types.Transaction{}, err
	}
	kind := types.TxKind(kindByte)
	switch kind {
	case types.TxKindRegisterModel:
		owner, err := r.hash256()
		if err != nil {
			return types.Transaction{}, err
		}
		aid, err := r.hash256()
		if err != nil {
			return types.Transaction{}, err
		}
		evidence, err := readEvidenceRef(r)
		if err != nil {
			return types.Transaction{}, err
		}
		fee, err := r.uint64()
		if err != nil {
			return types.Transaction{}, err
		}
		nonce, err := r.uint64()
		if err != nil {
			return types.Transaction{}, err
		}
		sig, err := r.bytesField()
		if err != nil {
			return types.Transaction{}, err
		}
		return types.NewRegisterModelTx(types.RegisterModelTx{
			Owner: types.AccountId(owner), Aid: types.Aid(aid), Evidence: evidence,
			Fee: fee, Nonce: nonce, Signature: sig,
		}), nil
	case types.TxKindUseModel:
		caller, err := r.hash256()
		if err != nil {
			return types.Transaction{}, err
		}
		aid, err := r.hash256()
		if err != nil {
			return types.Transaction{}, err
		}
		task, err := r.stringField()
		if err != nil {
			return types.Transaction{}, err
		}
		version, err := r.optionalString()
		if err != nil {
			return types.Transaction{}, err
		}
		fee, err := r.uint64()
		if err != nil {
			return types.Transaction{}, err
		}
		nonce, err := r.uint64()
		if err != nil {
			return types.Transaction{}, err
		}
		sig, err := r.bytesField()
		if err != nil {
			return types.Transaction{}, err
		}
		return types.NewUseModelTx(types.UseModelTx{
			Caller: types.AccountId(caller), Aid: types.Aid(aid),
			Metadata: types.ModelUseMetadata{Task: task, Version: version},
			Fee:      fee, Nonce: nonce, Signature: sig,
		}), nil
	case types.TxKindTransfer:
		from, err := r.hash256()
		if err != nil {
			return types.Transaction{}, err
		}
		to, err := r.hash256()
		if err != nil {
			return types.Transaction{}, err
		}
		amount, err := r.uint64()
		if err != nil {
			return types.Transaction{}, err
		}
		fee, err := r.uint64()
		if err != nil {
			return types.Transaction{}, err
		}
		nonce, err := r.uint64()
		if err != nil {
			return types.Transaction{}, err
		}
		sig, err := r.bytesField()
		if err != nil {
			return types.Transaction{}, err
		}
		return types.NewTransferTx(types.TransferTx{
			From: types.AccountId(from), To: types.AccountId(to), Amount: amount,
			Fee: fee, Nonce: nonce, Signature: sig,
		}), nil
	default:
		return types.Transaction{}, fmt.Errorf("canon: unknown transaction tag %d", kindByte)
	}
}

func readHeader(r *reader) (types.Header, error) {
	var h types.Header
	parent, err := r.hash256()
	if err != nil {
		return h, err
	}
	height, err := r.uint64()
	if err != nil {
		return h, err
	}
	timestamp, err := r.uint64()
	if err != nil {
		return h, err
	}
	proposer, err := r.hash256()
	if err != nil {
		return h, err
	}
	posProof, err := r.optionalBytes()
	if err != nil {
		return h, err
	}
	h.Parent = types.BlockHash(parent)
	h.Height = height
	h.Timestamp = timestamp
	h.Proposer = types.AccountId(proposer)
	h.PosProof = posProof
	return h, nil
}

// DecodeTransaction parses the canonical bytes of a single transaction.
func DecodeTransaction(data []byte) (types.Transaction, error) {
	r := &reader{buf: data}
	tx, err := readTransaction(r)
	if err != nil {
		return types.Transaction{}, err
	}
	if r.pos != len(r.buf) {
		return types.Transaction{}, fmt.Errorf("canon: %d trailing bytes after transaction", len(r.buf)-r.pos)
	}
	return tx, nil
}

// DecodeBlock parses the canonical bytes produced by EncodeBlock.
func DecodeBlock(data []byte) (*types.Block, error) {
	r := &reader{buf: data}
	header, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("canon: decoding header: %w", err)
	}
	count, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("canon: decoding tx count: %w", err)
	}
	txs := make([]types.Transaction, 0, count)
	for i := uint32(0); i < count; i++ {
		tx, err := readTransaction(r)
		if err != nil {
			return nil, fmt.Errorf("canon: decoding tx %d: %w", i, err)
		}
		txs = append(txs, tx)
	}
	if r.pos != len(r.buf) {
		return nil, fmt.Errorf("canon: %d trailing bytes after block", len(r.buf)-r.pos)
	}
	return &types.Block{Header: header, Txs: txs}, nil
}
