// Package app holds the phishguard-cli commands.
package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/phishguard/phishguard/internal/config"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/di"
	"github.com/phishguard/phishguard/internal/factory"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// deps is what every command receives from the container
type deps struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.ScanService
	stores  factory.Store
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	flags := &di.CLIFlags{}
	var overrides []string

	rootCmd := &cobra.Command{
		Use:           "phishguard-cli",
		Short:         "PhishGuard command line",
		Long:          "Scans connected mailboxes for phishing and inspects stored results",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.EnvFile == "" {
				flags.EnvFile = os.Getenv(config.EnvFileVariable)
			}
			parsed, err := parseOverrides(overrides)
			if err != nil {
				return err
			}
			flags.Overrides = parsed
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flags.EnvFile, "env-file", "", "Path to a .env file loaded before the environment")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringArrayVar(&overrides, "set", nil, "Override a configuration key (key=value), repeatable")

	rootCmd.AddCommand(
		newScanCmd(flags),
		newStatsCmd(flags),
		newLatestCmd(flags),
		newClassifyCmd(flags),
		newPrincipalCmd(flags),
		newMigrateCmd(flags),
	)
	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func parseOverrides(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}

// withDeps builds the container, hands the resolved services to fn and
// releases them afterwards
func withDeps(flags *di.CLIFlags, fn func(d *deps) error) error {
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(
		cfg *config.Config,
		logger *zap.Logger,
		service *core.ScanService,
		stores factory.Store,
		scorer core.Scorer,
		scoreCache core.ScoreCache,
	) error {
		defer logger.Sync()
		defer di.Shutdown(logger, scorer, scoreCache, stores)

		return fn(&deps{cfg: cfg, logger: logger, service: service, stores: stores})
	})
}

// withStore resolves only the store, so schema and principal commands work
// without a model or OAuth configuration
func withStore(flags *di.CLIFlags, fn func(stores factory.Store, logger *zap.Logger) error) error {
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(stores factory.Store, logger *zap.Logger) error {
		defer logger.Sync()
		defer func() {
			if err := stores.Close(); err != nil {
				logger.Error("Failed to close store", zap.Error(err))
			}
		}()
		return fn(stores, logger)
	})
}
