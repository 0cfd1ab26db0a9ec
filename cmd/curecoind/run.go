package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"curecoin.dev/node/node"
)

func newRunCmd(g *globalFlags) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rebuild the chain from the block log and serve until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config(cmd)
			if err != nil {
				return err
			}
			logger, err := node.NewLogger(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			n, err := node.OpenNode(ctx, cfg, logger, reg)
			if err != nil {
				return err
			}
			defer func() {
				if err := n.Close(); err != nil {
					logger.Warn("close node", zap.Error(err))
				}
			}()
			if err := printJSON(cmd.OutOrStdout(), statusOf(n.Chain)); err != nil {
				return err
			}
			if dryRun {
				return nil
			}

			if cfg.MetricsAddr != "" {
				srv := metricsServer(cfg.MetricsAddr, reg)
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server", zap.Error(err))
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				logger.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
			}

			logger.Info("node running", zap.String("network", cfg.Network), zap.String("datadir", cfg.DataDir))
			<-ctx.Done()
			logger.Info("node stopping")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the chain status after replay and exit")
	return cmd
}

func metricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func newImportCmd(g *globalFlags) *cobra.Command {
	var stopOnError bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Submit newline-delimited raw blocks to the chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config(cmd)
			if err != nil {
				return err
			}
			logger, err := node.NewLogger(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := node.OpenNode(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			defer func() { _ = n.Close() }()

			out := cmd.OutOrStdout()
			sc := bufio.NewScanner(f)
			sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
			line, failed := 0, 0
			for sc.Scan() {
				line++
				raw := strings.TrimSpace(sc.Text())
				if raw == "" {
					continue
				}
				d, err := n.Chain.AddRawBlock(raw)
				if err != nil {
					failed++
					_, _ = fmt.Fprintf(out, "line %d: rejected: %v\n", line, err)
					if stopOnError {
						return fmt.Errorf("line %d: %w", line, err)
					}
					continue
				}
				_, _ = fmt.Fprintf(out, "line %d: %s\n", line, d)
			}
			if err := sc.Err(); err != nil {
				return err
			}
			if err := printJSON(out, statusOf(n.Chain)); err != nil {
				return err
			}
			if failed > 0 {
				logger.Warn("import finished with rejections", zap.Int("rejected", failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "abort at the first rejected block")
	return cmd
}
