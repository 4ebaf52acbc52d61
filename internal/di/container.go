package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/phishguard/phishguard/internal/adapters/gmail"
	"github.com/phishguard/phishguard/internal/adapters/httpapi"
	"github.com/phishguard/phishguard/internal/adapters/oauth"
	"github.com/phishguard/phishguard/internal/config"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/factory"
	"github.com/phishguard/phishguard/internal/logging"
	"github.com/phishguard/phishguard/internal/utils"
)

// BuildContainer creates the container for the HTTP server
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := registerServices(container); err != nil {
		return nil, err
	}

	// Register HTTP server
	if err := container.Provide(func(
		cfg *config.Config,
		service *core.ScanService,
		stores factory.Store,
		connector *oauth.Connector,
		logger *zap.Logger,
	) *httpapi.Server {
		return httpapi.NewServer(
			service,
			stores,
			connector,
			cfg.GetString("server.listen_address"),
			cfg.GetOAuth().FrontendURL,
			logger.Named("http"),
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// registerServices registers everything below the outer surfaces. The
// container must already provide *config.Config and *zap.Logger.
func registerServices(container *dig.Container) error {
	// Register factories
	for _, constructor := range []interface{}{
		factory.NewTextProcessorFactory,
		factory.NewScorerFactory,
		factory.NewCacheFactory,
		factory.NewStoreFactory,
		factory.NewMailFactory,
	} {
		if err := container.Provide(constructor); err != nil {
			return err
		}
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register scorer; nil when no model is loaded
	if err := container.Provide(func(f *factory.ScorerFactory) (core.Scorer, error) {
		return f.CreateScorer()
	}); err != nil {
		return err
	}

	// Register score cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.ScoreCache, error) {
		return f.CreateScoreCache()
	}); err != nil {
		return err
	}

	// Register stores
	if err := container.Provide(func(f *factory.StoreFactory) (factory.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.StoreFactory, s factory.Store) (core.CredentialStore, error) {
		return f.CreateCredentialStore(s)
	}); err != nil {
		return err
	}

	// Register mail adapters
	if err := container.Provide(func(f *factory.MailFactory) (*gmail.Client, error) {
		return f.CreateGmailClient()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.MailFactory) (*oauth.Refresher, error) {
		return f.CreateRefresher()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.MailFactory, client *gmail.Client) (core.AlertSender, error) {
		return f.CreateAlertSender(client)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.MailFactory, credentials core.CredentialStore) *oauth.Connector {
		return f.CreateConnector(credentials)
	}); err != nil {
		return err
	}

	// Register timeouts
	if err := container.Provide(func(cfg *config.Config) (config.TimeoutsConfig, error) {
		return cfg.GetTimeouts()
	}); err != nil {
		return err
	}

	// Register credential manager
	if err := container.Provide(func(
		credentials core.CredentialStore,
		refresher *oauth.Refresher,
		logger *zap.Logger,
		timeouts config.TimeoutsConfig,
	) *core.CredentialManager {
		return core.NewCredentialManager(credentials, refresher, logger.Named("credentials"), timeouts.Refresh)
	}); err != nil {
		return err
	}

	// Register classifier
	if err := container.Provide(func(
		scorer core.Scorer,
		scoreCache core.ScoreCache,
		f *factory.CacheFactory,
		logger *zap.Logger,
	) (*core.Classifier, error) {
		ttl, err := f.GetCacheTTL()
		if err != nil {
			return nil, err
		}
		return core.NewClassifier(scorer, scoreCache, logger.Named("classifier"), f.IsCacheEnabled(), ttl), nil
	}); err != nil {
		return err
	}

	// Register alert dispatcher
	if err := container.Provide(func(
		credentials *core.CredentialManager,
		sender core.AlertSender,
		logger *zap.Logger,
		timeouts config.TimeoutsConfig,
	) *core.AlertDispatcher {
		return core.NewAlertDispatcher(credentials, sender, logger.Named("alert"), timeouts.Alert)
	}); err != nil {
		return err
	}

	// Register scan service
	if err := container.Provide(func(
		cfg *config.Config,
		credentials *core.CredentialManager,
		fetcher *gmail.Client,
		classifier *core.Classifier,
		results factory.Store,
		alerts *core.AlertDispatcher,
		logger *zap.Logger,
		timeouts config.TimeoutsConfig,
	) *core.ScanService {
		scanCfg := cfg.GetScan()
		return core.NewScanService(
			credentials,
			fetcher,
			classifier,
			results,
			alerts,
			logger.Named("scan"),
			timeouts.Fetch,
			scanCfg.MaxMessagesLimit,
			core.ScanRequest{MaxMessages: scanCfg.MaxMessages, Query: scanCfg.Query},
		)
	}); err != nil {
		return err
	}

	return nil
}

// Shutdown releases what the container opened
func Shutdown(logger *zap.Logger, scorer core.Scorer, scoreCache core.ScoreCache, stores factory.Store) {
	if closer, ok := scorer.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close scorer", zap.Error(err))
		}
	}

	if stopper, ok := scoreCache.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	if err := stores.Close(); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}
}
