package factory

import (
	"fmt"
	"net/http"

	"github.com/phishguard/phishguard/internal/adapters/gmail"
	"github.com/phishguard/phishguard/internal/adapters/oauth"
	"github.com/phishguard/phishguard/internal/adapters/smtp"
	"github.com/phishguard/phishguard/internal/config"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// MailFactory creates the Gmail, OAuth and alert transport adapters
type MailFactory struct {
	cfg        *config.Config
	logger     *zap.Logger
	httpClient *http.Client
}

// NewMailFactory creates a new mail factory
func NewMailFactory(cfg *config.Config, logger *zap.Logger) *MailFactory {
	return &MailFactory{
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{},
	}
}

// RetryPolicy returns the configured retry policy
func (f *MailFactory) RetryPolicy() (retry.Policy, error) {
	retryCfg, err := f.cfg.GetRetry()
	if err != nil {
		return retry.Policy{}, err
	}
	return retry.Policy{
		MaxAttempts:     retryCfg.MaxAttempts,
		InitialInterval: retryCfg.InitialInterval,
		MaxInterval:     retryCfg.MaxInterval,
	}, nil
}

// CreateGmailClient creates the Gmail API client
func (f *MailFactory) CreateGmailClient() (*gmail.Client, error) {
	policy, err := f.RetryPolicy()
	if err != nil {
		return nil, err
	}
	return gmail.NewClient(f.cfg.GetGmail().Endpoint, f.httpClient, policy, f.logger.Named("gmail")), nil
}

// CreateRefresher creates the token endpoint client
func (f *MailFactory) CreateRefresher() (*oauth.Refresher, error) {
	policy, err := f.RetryPolicy()
	if err != nil {
		return nil, err
	}
	return oauth.NewRefresher(f.httpClient, policy, f.logger.Named("oauth")), nil
}

// CreateConnector creates the authorization-code flow
func (f *MailFactory) CreateConnector(credentials core.CredentialStore) *oauth.Connector {
	oauthCfg := f.cfg.GetOAuth()
	endpoint := oauth.DefaultEndpoint
	if oauthCfg.AuthURL != "" && oauthCfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{AuthURL: oauthCfg.AuthURL, TokenURL: oauthCfg.TokenURL}
	}
	return oauth.NewConnector(
		oauthCfg.ClientID,
		oauthCfg.ClientSecret,
		oauthCfg.RedirectURL,
		endpoint,
		credentials,
		f.httpClient,
		f.logger.Named("connect"),
	)
}

// CreateAlertSender creates the configured alert transport
func (f *MailFactory) CreateAlertSender(gmailClient *gmail.Client) (core.AlertSender, error) {
	alertCfg := f.cfg.GetAlert()

	switch alertCfg.Transport {
	case "gmail":
		return gmailClient, nil
	case "smtp":
		return smtp.NewSender(alertCfg.SMTPAddress, alertCfg.SMTPRequireTLS, nil, f.logger.Named("smtp")), nil
	default:
		return nil, fmt.Errorf("unsupported alert transport: %s", alertCfg.Transport)
	}
}
