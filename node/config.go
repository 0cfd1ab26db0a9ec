package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"curecoin.dev/node/consensus"
)

type Config struct {
	Network     string `json:"network"`
	DataDir     string `json:"data_dir"`
	LogLevel    string `json:"log_level"`
	LogFile     string `json:"log_file"`
	MetricsAddr string `json:"metrics_addr"`

	BlockReward     uint64 `json:"block_reward"`
	PoSWindow       int64  `json:"pos_window"`
	ForkWindow      int64  `json:"fork_window"`
	ReplayPassCap   int    `json:"replay_pass_cap"`
	MaxQueuedBlocks int    `json:"max_queued_blocks"`

	VerifyLedgerHash   bool `json:"verify_ledger_hash"`
	HaltOnUnresolvable bool `json:"halt_on_unresolvable"`
	VerifyCacheMB      int  `json:"verify_cache_mb"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".curecoin"
	}
	return filepath.Join(home, ".curecoin")
}

func DefaultConfig() Config {
	return Config{
		Network:            "mainnet",
		DataDir:            DefaultDataDir(),
		LogLevel:           "info",
		BlockReward:        consensus.BLOCK_REWARD,
		PoSWindow:          consensus.POS_WINDOW,
		ForkWindow:         10,
		ReplayPassCap:      DefaultReplayPassCap,
		MaxQueuedBlocks:    1024,
		VerifyLedgerHash:   false,
		HaltOnUnresolvable: true,
		VerifyCacheMB:      64,
	}
}

// LoadConfigFile overlays a JSON config file onto DefaultConfig.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := readFileByPath(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("invalid metrics_addr: %w", err)
		}
	}
	if cfg.PoSWindow <= 0 {
		return errors.New("pos_window must be > 0")
	}
	if cfg.ForkWindow <= 0 {
		return errors.New("fork_window must be > 0")
	}
	if cfg.ReplayPassCap <= 0 {
		return errors.New("replay_pass_cap must be > 0")
	}
	if cfg.MaxQueuedBlocks <= 0 {
		return errors.New("max_queued_blocks must be > 0")
	}
	if cfg.VerifyCacheMB < 0 {
		return errors.New("verify_cache_mb must be >= 0")
	}
	return nil
}
