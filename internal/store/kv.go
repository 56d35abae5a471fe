// Copyright 2025 Certen Protocol
//
// Persistent, key-value-backed block store, backed by cometbft-db's
// GoLevelDB engine via dbm.NewGoLevelDB. GoLevelDB has no native
// column-family concept (unlike RocksDB), so the two logical namespaces
// ("blocks" and "meta") are modeled as key prefixes within a single
// database.

package store

import (
	"fmt"
	"os"
	"path/filepath"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/certen/ml-consensus/internal/canon"
	"github.com/certen/ml-consensus/internal/types"
)

var (
	blocksPrefix = []byte("blocks:")
	metaTipKey   = []byte("meta:tip")
)

func blockKey(hash types.BlockHash) []byte {
	key := make([]byte, 0, len(blocksPrefix)+types.HashLen)
	key = append(key, blocksPrefix...)
	key = append(key, hash.Bytes()...)
	return key
}

// KVConfig configures a persistent KVStore.
type KVConfig struct {
	// Path is the filesystem directory the database lives in.
	Path string
	// CreateIfMissing controls whether the database directory is created
	// when absent. GoLevelDB always creates missing directories on open,
	// so this flag is honored by refusing to open when false and the
	// directory does not yet exist, rather than by an underlying engine
	// option.
	CreateIfMissing bool
}

// DefaultKVConfig returns the documented defaults (data/chain-db, create
// if missing).
func DefaultKVConfig() KVConfig {
	return KVConfig{Path: "data/chain-db", CreateIfMissing: true}
}

// KVAdapter wraps a cometbft-db handle behind a minimal Get/Set surface.
type KVAdapter struct {
	db dbm.DB
}

// NewKVAdapter wraps db.
func NewKVAdapter(db dbm.DB) *KVAdapter { return &KVAdapter{db: db} }

func (a *KVAdapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	v, err := a.db.Get(key)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (a *KVAdapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

// KVStore is the persistent implementation of BlockStore.
type KVStore struct {
	kv *KVAdapter
}

// OpenKVStore opens (or creates) a GoLevelDB-backed block store at the
// path named by cfg.
func OpenKVStore(cfg KVConfig) (*KVStore, error) {
	dir := filepath.Dir(cfg.Path)
	name := filepath.Base(cfg.Path)
	if !cfg.CreateIfMissing {
		// GoLevelDB keeps the database in <dir>/<name>.db.
		if _, err := os.Stat(filepath.Join(dir, name+".db")); err != nil {
			return nil, fmt.Errorf("store: opening goleveldb at %s with create_if_missing disabled: %w", cfg.Path, err)
		}
	}
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, fmt.Errorf("store: opening goleveldb at %s: %w", cfg.Path, err)
	}
	return &KVStore{kv: NewKVAdapter(db)}, nil
}

// OpenKVStoreWithDB wraps an already-open cometbft-db handle (used by
// tests and by callers that manage the DB lifecycle themselves).
func OpenKVStoreWithDB(db dbm.DB) *KVStore {
	return &KVStore{kv: NewKVAdapter(db)}
}

func (s *KVStore) GetBlock(hash types.BlockHash) (*types.Block, bool, error) {
	raw, err := s.kv.Get(blockKey(hash))
	if err != nil {
		return nil, false, fmt.Errorf("store: get block %s: %w", hash.Hex(), err)
	}
	if raw == nil {
		return nil, false, nil
	}
	block, err := canon.DecodeBlock(raw)
	if err != nil {
		return nil, false, fmt.Errorf("store: decoding block %s: %w", hash.Hex(), err)
	}
	return block, true, nil
}

func (s *KVStore) PutBlock(block *types.Block) error {
	h, err := canon.ComputeHash(block)
	if err != nil {
		return fmt.Errorf("store: computing hash before put: %w", err)
	}
	enc, err := canon.EncodeBlock(block)
	if err != nil {
		return fmt.Errorf("store: encoding block %s: %w", h.Hex(), err)
	}
	if err := s.kv.Set(blockKey(h), enc); err != nil {
		return fmt.Errorf("store: put block %s: %w", h.Hex(), err)
	}
	return nil
}

func (s *KVStore) Tip() (types.BlockHash, bool, error) {
	raw, err := s.kv.Get(metaTipKey)
	if err != nil {
		return types.BlockHash{}, false, fmt.Errorf("store: reading tip: %w", err)
	}
	if raw == nil {
		return types.BlockHash{}, false, nil
	}
	if len(raw) != types.HashLen {
		return types.BlockHash{}, false, fmt.Errorf("%w: tip entry has %d bytes, want %d", ErrCorruptedMeta, len(raw), types.HashLen)
	}
	h, err := types.Hash256FromBytes(raw)
	if err != nil {
		return types.BlockHash{}, false, fmt.Errorf("%w: %v", ErrCorruptedMeta, err)
	}
	return types.BlockHash(h), true, nil
}

func (s *KVStore) SetTip(hash types.BlockHash) error {
	if err := s.kv.Set(metaTipKey, hash.Bytes()); err != nil {
		return fmt.Errorf("store: setting tip: %w", err)
	}
	return nil
}
