// Package cmd defines and implements the CLI commands for the stlcrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/stl-revenue-crawler/internal/config"
	"github.com/JakeFAU/stl-revenue-crawler/internal/logging"
)

// runtimeKeyType is the key for storing the loaded runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// runtime carries what PersistentPreRunE loaded for subcommands.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// loadConfig and newLogger are variables so tests can substitute them.
var (
	loadConfig = config.Load
	newLogger  = logging.New
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "stlcrawler",
		Short: "Captures monthly download and revenue snapshots of 3D-model listings.",
		Long: `stlcrawler walks the paginated popular-creations listing, visits every item
it has not captured yet this month, extracts title, tags, downloads and price,
and stores one JSON record per item and month.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := newLogger(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), runtimeKey, &runtime{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, err := resolveRuntime(cmd.Context()); err == nil {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newKeyCmd())

	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	if ctx == nil {
		return nil, errors.New("configuration not loaded")
	}
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("configuration not loaded")
	}
	return rt, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	executed, err := newRootCmd().ExecuteContextC(ctx)
	if err != nil {
		logger := zap.NewNop()
		if executed == nil {
			executed = &cobra.Command{}
		}
		if rt, rerr := resolveRuntime(executed.Context()); rerr == nil {
			logger = rt.logger
		} else if fallback, ferr := logging.New(false, ""); ferr == nil {
			logger = fallback
		}
		stop()
		logger.Fatal("command failed", zap.Error(err))
	}
}
