package node

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateConfigOK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricsAddr = "127.0.0.1:9100"
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestDefaultConfigPolicy(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BlockReward != 100 || cfg.PoSWindow != 500 || cfg.ForkWindow != 10 || cfg.ReplayPassCap != 10000 {
		t.Fatalf("unexpected policy defaults: %+v", cfg)
	}
	if !cfg.HaltOnUnresolvable || cfg.VerifyLedgerHash {
		t.Fatalf("unexpected safety defaults: %+v", cfg)
	}
}

func TestValidateConfigRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"empty network":   func(c *Config) { c.Network = " " },
		"empty data dir":  func(c *Config) { c.DataDir = "" },
		"bad log level":   func(c *Config) { c.LogLevel = "verbose" },
		"bad metrics":     func(c *Config) { c.MetricsAddr = "9100" },
		"zero pos window": func(c *Config) { c.PoSWindow = 0 },
		"zero fork":       func(c *Config) { c.ForkWindow = 0 },
		"zero pass cap":   func(c *Config) { c.ReplayPassCap = 0 },
		"zero queue":      func(c *Config) { c.MaxQueuedBlocks = 0 },
		"negative cache":  func(c *Config) { c.VerifyCacheMB = -1 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := ValidateConfig(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadConfigFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.json")
	if err := os.WriteFile(path, []byte(`{"network":"testnet","fork_window":4}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Network != "testnet" || cfg.ForkWindow != 4 || cfg.BlockReward != 100 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if err := os.WriteFile(path, []byte(`{`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
