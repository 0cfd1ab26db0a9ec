package node

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"curecoin.dev/node/crypto"
	"curecoin.dev/node/node/store"
)

// Node owns a Chain together with the files and caches behind it.
type Node struct {
	Chain    *Chain
	Store    *store.DB
	BlockLog *BlockLog
	verifier *crypto.CachedVerifier
}

// OpenNode opens the data directory described by cfg and rebuilds the chain
// from its block log. reg may be nil.
func OpenNode(ctx context.Context, cfg Config, logger *zap.Logger, reg prometheus.Registerer) (*Node, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("datadir create: %w", err)
	}
	n := &Node{}
	ok := false
	defer func() {
		if !ok {
			_ = n.Close()
		}
	}()

	var err error
	if n.Store, err = store.Open(cfg.DataDir, cfg.Network); err != nil {
		return nil, err
	}
	if n.BlockLog, err = OpenBlockLog(BlockLogPath(cfg.DataDir)); err != nil {
		return nil, err
	}
	var v crypto.Verifier = crypto.MerkleVerifier{}
	if cfg.VerifyCacheMB > 0 {
		if n.verifier, err = crypto.NewCachedVerifier(ctx, nil, cfg.VerifyCacheMB, 0); err != nil {
			return nil, fmt.Errorf("verify cache: %w", err)
		}
		v = n.verifier
	}
	n.Chain, err = NewChain(cfg, ChainOptions{
		Verifier:   v,
		Logger:     logger,
		Metrics:    NewMetrics(reg),
		Store:      n.Store,
		BlockLog:   n.BlockLog,
		LedgerPath: LedgerPath(cfg.DataDir),
	})
	if err != nil {
		return nil, err
	}
	if _, err := n.Chain.LoadFromLog(ctx); err != nil {
		return nil, fmt.Errorf("replay block log: %w", err)
	}
	ok = true
	return n, nil
}

func (n *Node) Close() error {
	if n == nil {
		return nil
	}
	var errs []error
	if n.BlockLog != nil {
		errs = append(errs, n.BlockLog.Close())
	}
	if n.Store != nil {
		errs = append(errs, n.Store.Close())
	}
	if n.verifier != nil {
		errs = append(errs, n.verifier.Close())
	}
	return errors.Join(errs...)
}
