// Copyright 2025 Certen Protocol

package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/certen/ml-consensus/internal/config"
	"github.com/certen/ml-consensus/internal/consensus"
	"github.com/certen/ml-consensus/internal/forkchoice"
	"github.com/certen/ml-consensus/internal/metrics"
	"github.com/certen/ml-consensus/internal/mlclient"
	"github.com/certen/ml-consensus/internal/proposer"
	"github.com/certen/ml-consensus/internal/store"
	"github.com/certen/ml-consensus/internal/types"
	"github.com/certen/ml-consensus/internal/validation"
)

// emptyTxPool never selects any transaction. A real deployment would plug
// in a mempool; this node wiring demonstrates the propose/import loop
// against an always-empty pool.
type emptyTxPool struct{}

func (emptyTxPool) SelectForBlock(int, int) []types.Transaction { return nil }

// fixedTxPool hands back the same pre-selected batch on every call, letting
// the production loop inspect a selection before deciding whether to
// propose. The loop builds a fresh one for each proposal.
type fixedTxPool struct {
	txs []types.Transaction
}

func (p fixedTxPool) SelectForBlock(int, int) []types.Transaction { return p.txs }

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("starting Certen ML-authenticity validator node")

	var (
		proposerIDHex     = flag.String("proposer-id", "", "hex-encoded 32-byte proposer account id (overrides VALIDATOR_PROPOSER_ID env var)")
		proposerPubKeyHex = flag.String("proposer-pubkey", "", "hex-encoded proposer public key; derives the account id via Keccak-256 when -proposer-id is not set (overrides VALIDATOR_PROPOSER_PUBKEY env var)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	proposerID, err := resolveProposerID(*proposerIDHex, *proposerPubKeyHex)
	if err != nil {
		log.Fatalf("failed to resolve proposer id: %v", err)
	}

	metricsRegistry := metrics.NewRegistry()

	if cfg.Metrics.Enabled {
		go func() {
			log.Printf("metrics exporter listening on %s", cfg.Metrics.ListenAddr)
			mux := http.NewServeMux()
			mux.Handle("/metrics", metricsRegistry.Handler())
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil && err != http.ErrServerClosed {
				log.Fatalf("metrics server failed: %v", err)
			}
		}()
	}

	blockStore, err := store.OpenKVStore(store.KVConfig{
		Path:            cfg.Storage.Path,
		CreateIfMissing: cfg.Storage.CreateIfMissing,
	})
	if err != nil {
		log.Fatalf("failed to open block store at %s: %v", cfg.Storage.Path, err)
	}

	verifier := mlclient.NewHTTPVerifier(mlclient.HTTPConfig{
		BaseURL: cfg.MlClient.BaseURL,
		Timeout: cfg.MlClient.Timeout,
	})

	baseValidator := validation.NewBaseValidator(validation.BaseConfig{
		MaxBlockTxs:       cfg.Consensus.MaxBlockTxs,
		MaxBlockSizeBytes: cfg.Consensus.MaxBlockSizeBytes,
	})
	mlValidator := validation.NewMLValidator(
		verifier,
		validation.MLConfig{MaxArtefactsPerBlock: cfg.MlValidation.MaxArtefactsPerBlock},
		func(d time.Duration) { metricsRegistry.Consensus.MLAuthSeconds.Observe(d.Seconds()) },
	)
	combinedValidator := validation.NewCombinedValidator(baseValidator, mlValidator)

	nodeProposer := proposer.NewProposer(proposer.Config{
		MaxBlockTxs:       cfg.Consensus.MaxBlockTxs,
		MaxBlockSizeBytes: cfg.Consensus.MaxBlockSizeBytes,
		AllowEmptyBlocks:  cfg.Consensus.AllowEmptyBlocks,
	})

	engine := consensus.New(blockStore, combinedValidator, nodeProposer, forkchoice.NewLongestChain(), metricsRegistry)

	ctx, cancel := context.WithCancel(context.Background())
	go runProductionLoop(ctx, engine, proposerID, emptyTxPool{}, cfg.Consensus, time.Duration(cfg.Consensus.BlockTimeSecs)*time.Second)

	log.Printf("validator node ready, proposing every %ds", cfg.Consensus.BlockTimeSecs)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down validator node")
	cancel()
}

func runProductionLoop(ctx context.Context, engine *consensus.Engine, proposerID types.AccountId, pool proposer.TxPool, consensusCfg config.ConsensusConfig, blockTime time.Duration) {
	ticker := time.NewTicker(blockTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			selected := pool.SelectForBlock(consensusCfg.MaxBlockTxs, consensusCfg.MaxBlockSizeBytes)
			if len(selected) == 0 && !consensusCfg.AllowEmptyBlocks {
				log.Printf("skipping proposal: no transactions available and allow_empty_blocks is false")
				continue
			}

			hash, block, err := engine.ProposeBlock(proposerID, fixedTxPool{txs: selected}, uint64(time.Now().Unix()))
			if err != nil {
				log.Printf("block proposal rejected: %v", err)
				continue
			}
			log.Printf("imported block height=%d hash=%s", block.Header.Height, hash.Hex())
		}
	}
}

// resolveProposerID resolves the node's proposer account id. An explicit
// account id takes precedence; otherwise a public key is derived via
// Keccak-256; otherwise the zero account id is used.
func resolveProposerID(idFlag, pubKeyFlag string) (types.AccountId, error) {
	idHex := idFlag
	if idHex == "" {
		idHex = os.Getenv("VALIDATOR_PROPOSER_ID")
	}
	if idHex != "" {
		h, err := types.Hash256FromHex(idHex)
		if err != nil {
			return types.AccountId{}, err
		}
		return types.AccountId(h), nil
	}

	pubKeyHex := pubKeyFlag
	if pubKeyHex == "" {
		pubKeyHex = os.Getenv("VALIDATOR_PROPOSER_PUBKEY")
	}
	if pubKeyHex != "" {
		pubKey, err := hex.DecodeString(pubKeyHex)
		if err != nil {
			return types.AccountId{}, fmt.Errorf("invalid proposer public key hex: %w", err)
		}
		return types.DeriveAccountID(pubKey), nil
	}

	return types.AccountId(types.ZeroHash256), nil
}
