package factory

import (
	"context"
	"fmt"

	"github.com/phishguard/phishguard/internal/adapters/keyring"
	"github.com/phishguard/phishguard/internal/adapters/store"
	"github.com/phishguard/phishguard/internal/config"
	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
)

// Store is what every persistence backend provides
type Store interface {
	core.ResultStore
	core.PrincipalStore
	core.CredentialStore
	Close() error
}

// StoreFactory creates persistence backends based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore opens the configured store and brings its schema up to date
func (f *StoreFactory) CreateStore() (Store, error) {
	storeCfg := f.cfg.GetStore()
	logger := f.logger.Named("store")

	var (
		s   Store
		err error
	)
	switch storeCfg.Type {
	case "memory":
		logger.Warn("Using in-memory store; results are lost on restart")
		s = store.NewMemoryStore()
	case "sqlite":
		if err := ensureDir(storeCfg.SQLitePath); err != nil {
			return nil, err
		}
		s, err = store.NewSQLiteStore(storeCfg.SQLitePath, logger)
	case "mysql":
		s, err = store.NewMySQLStore(storeCfg.MySQLDSN, logger)
	case "postgres":
		s, err = store.NewPostgresStore(context.Background(), storeCfg.PostgresURL, logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateCredentialStore returns where OAuth credentials are kept: the main
// store or the system keyring
func (f *StoreFactory) CreateCredentialStore(main Store) (core.CredentialStore, error) {
	credCfg := f.cfg.GetCredentials()

	switch credCfg.Backend {
	case "store", "":
		return main, nil
	case "keyring":
		ring, err := keyring.Open(credCfg.KeyringDir, credCfg.KeyringPassword)
		if err != nil {
			return nil, err
		}
		f.logger.Info("Using keyring for credentials", zap.String("file_dir", credCfg.KeyringDir))
		return ring, nil
	default:
		return nil, fmt.Errorf("unsupported credentials backend: %s", credCfg.Backend)
	}
}
