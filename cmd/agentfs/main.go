// agentfs CLI
//
// Operates a configured set of virtual file storage backends (S3,
// PostgreSQL, in-memory) through the uniform vfs.Backend contract:
// read, write, edit, list, glob, grep and batch transfer, with
// prefix-based composite routing.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clouddrift/agentfs/internal/config"
	"github.com/clouddrift/agentfs/internal/logging"
	"github.com/clouddrift/agentfs/internal/metrics"
	"github.com/clouddrift/agentfs/pkg/retry"
	"github.com/clouddrift/agentfs/vfs"
)

var (
	configPath string
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:           "agentfs",
		Short:         "Virtual file storage over S3 and PostgreSQL backends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "agentfs.yaml", "path to YAML config")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(
		newInitCmd(),
		newReadCmd(),
		newWriteCmd(),
		newEditCmd(),
		newLsCmd(),
		newGlobCmd(),
		newGrepCmd(),
		newUploadCmd(),
		newDownloadCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withBackend loads the config, builds the backend graph, initializes
// it and runs fn, closing everything on the way out.
func withBackend(fn func(ctx context.Context, b vfs.Backend) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		return err
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logging.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	backend, err := config.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize backends: %w", err)
	}
	return fn(ctx, backend)
}

// retryCfg wraps infrastructure faults in backoff. Expected conditions
// live in result values; the ones List/Glob/Grep surface through the
// error return are excluded from retry by the classifier.
func retryCfg() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.Retryable = func(err error) bool {
		_, isCondition := vfs.AsOpError(err)
		return !isCondition
	}
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		logging.Warn("retrying after infrastructure fault",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	return cfg
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create schemas and buckets for all configured backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b vfs.Backend) error {
				logging.Info("backends initialized", zap.String("type", b.Type()))
				return nil
			})
		},
	}
}
