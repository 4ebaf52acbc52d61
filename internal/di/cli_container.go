package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/phishguard/phishguard/internal/config"
	"github.com/phishguard/phishguard/internal/logging"
)

// CLIFlags contains the global command line flags of the CLI
type CLIFlags struct {
	ConfigFile string
	EnvFile    string
	Verbose    bool
	JSONLog    bool

	// Overrides are applied on top of the loaded configuration
	Overrides map[string]interface{}
}

// BuildCLIContainer creates the container for CLI commands. It registers the
// same services as the server without the HTTP surface.
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.Load(flags.ConfigFile, flags.EnvFile)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Debug("Loaded configuration from file", zap.String("file", used))
		}
		for key, value := range flags.Overrides {
			cfg.GetViper().Set(key, value)
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := registerServices(container); err != nil {
		return nil, err
	}

	return container, nil
}
