package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"curecoin.dev/node/node"
)

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath  string
	network     string
	dataDir     string
	logLevel    string
	logFile     string
	metricsAddr string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	defaults := node.DefaultConfig()
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "curecoind",
		Short:         "curecoin consensus node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "JSON config file")
	pf.StringVar(&g.network, "network", defaults.Network, "network name")
	pf.StringVar(&g.dataDir, "datadir", defaults.DataDir, "node data directory")
	pf.StringVar(&g.logLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	pf.StringVar(&g.logFile, "log-file", "", "rotate JSON logs into this file instead of stderr")
	pf.StringVar(&g.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on host:port")

	root.AddCommand(
		newRunCmd(g),
		newImportCmd(g),
		newKeygenCmd(),
		newCheckAddressCmd(),
		newVerifyTxCmd(),
		newInspectBlockCmd(g),
		newLedgerCmd(g),
	)
	return root
}

// config layers the config file, then explicitly set flags, over the defaults.
func (g *globalFlags) config(cmd *cobra.Command) (node.Config, error) {
	cfg := node.DefaultConfig()
	if g.configPath != "" {
		loaded, err := node.LoadConfigFile(g.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("network") {
		cfg.Network = g.network
	}
	if flags.Changed("datadir") {
		cfg.DataDir = g.dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = g.logFile
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = g.metricsAddr
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := node.ValidateConfig(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type chainStatus struct {
	Length     int64  `json:"length"`
	Difficulty int64  `json:"difficulty"`
	Tips       int    `json:"tips"`
	Queued     int    `json:"queued"`
	LedgerHash string `json:"ledger_hash"`
	Halted     string `json:"halted,omitempty"`
}

func statusOf(c *node.Chain) chainStatus {
	s := chainStatus{
		Length:     c.Length(),
		Difficulty: c.Difficulty(),
		Tips:       c.Tips(),
		Queued:     c.Queued(),
		LedgerHash: c.LedgerHash(),
	}
	if err := c.Halted(); err != nil {
		s.Halted = err.Error()
	}
	return s
}
