package config

import (
	"os"
	"time"
)

// ScanConfig represents the scan request defaults
type ScanConfig struct {
	MaxMessages      int
	MaxMessagesLimit int
	Query            string
}

// TimeoutsConfig bounds each collaborator call
type TimeoutsConfig struct {
	Refresh time.Duration
	Fetch   time.Duration
	Alert   time.Duration
}

// RetryConfig represents the retry policy for transient collaborator failures
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// OAuthConfig represents the OAuth client registration
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	FrontendURL  string
	AuthURL      string
	TokenURL     string
}

// GmailConfig represents the Gmail API settings
type GmailConfig struct {
	Endpoint string
}

// ClassifierConfig selects the scoring backend
type ClassifierConfig struct {
	Provider    string
	LexiconPath string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	MaxBodySize int
}

// CacheConfig represents the score cache settings
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Type        string
	SQLitePath  string
	MySQLDSN    string
	PostgresURL string
}

// CredentialsConfig selects where OAuth credentials live
type CredentialsConfig struct {
	Backend         string
	KeyringDir      string
	KeyringPassword string
}

// AlertConfig selects the alert transport
type AlertConfig struct {
	Transport      string
	SMTPAddress    string
	SMTPRequireTLS bool
}

// ServerConfig represents the HTTP server settings
type ServerConfig struct {
	ListenAddress   string
	ShutdownTimeout time.Duration
}

// GetScan returns the scan configuration
func (c *Config) GetScan() ScanConfig {
	return ScanConfig{
		MaxMessages:      c.GetInt("scan.max_messages"),
		MaxMessagesLimit: c.GetInt("scan.max_messages_limit"),
		Query:            c.GetString("scan.query"),
	}
}

// GetTimeouts returns the collaborator timeouts
func (c *Config) GetTimeouts() (TimeoutsConfig, error) {
	var (
		t   TimeoutsConfig
		err error
	)
	if t.Refresh, err = c.GetDuration("timeouts.refresh"); err != nil {
		return t, err
	}
	if t.Fetch, err = c.GetDuration("timeouts.fetch"); err != nil {
		return t, err
	}
	if t.Alert, err = c.GetDuration("timeouts.alert"); err != nil {
		return t, err
	}
	return t, nil
}

// GetRetry returns the retry policy configuration
func (c *Config) GetRetry() (RetryConfig, error) {
	r := RetryConfig{MaxAttempts: c.GetInt("retry.max_attempts")}
	var err error
	if r.InitialInterval, err = c.GetDuration("retry.initial_interval"); err != nil {
		return r, err
	}
	if r.MaxInterval, err = c.GetDuration("retry.max_interval"); err != nil {
		return r, err
	}
	return r, nil
}

// GetOAuth returns the OAuth configuration
func (c *Config) GetOAuth() OAuthConfig {
	return OAuthConfig{
		ClientID:     c.GetString("oauth.client_id"),
		ClientSecret: c.GetString("oauth.client_secret"),
		RedirectURL:  c.GetString("oauth.redirect_url"),
		FrontendURL:  c.GetString("oauth.frontend_url"),
		AuthURL:      c.GetString("oauth.auth_url"),
		TokenURL:     c.GetString("oauth.token_url"),
	}
}

// GetGmail returns the Gmail configuration
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{Endpoint: c.GetString("gmail.endpoint")}
}

// GetClassifier returns the classifier configuration
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		Provider:    c.GetString("classifier.provider"),
		LexiconPath: c.GetString("classifier.lexicon_path"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetCache returns the score cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	cc := CacheConfig{
		Type:       c.GetString("cache.type"),
		Enabled:    c.GetBool("cache.enabled"),
		SQLitePath: c.GetString("cache.sqlite_path"),
		MySQLDSN:   c.GetString("cache.mysql_dsn"),
	}
	var err error
	if cc.TTL, err = c.GetDuration("cache.ttl"); err != nil {
		return cc, err
	}
	if cc.CleanupFrequency, err = c.GetDuration("cache.cleanup_frequency"); err != nil {
		return cc, err
	}
	return cc, nil
}

// GetStore returns the persistence configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:        c.GetString("store.type"),
		SQLitePath:  c.GetString("store.sqlite_path"),
		MySQLDSN:    c.GetString("store.mysql_dsn"),
		PostgresURL: c.GetString("store.postgres_url"),
	}
}

// GetCredentials returns the credential storage configuration
func (c *Config) GetCredentials() CredentialsConfig {
	return CredentialsConfig{
		Backend:         c.GetString("credentials.backend"),
		KeyringDir:      os.ExpandEnv(c.GetString("credentials.keyring_dir")),
		KeyringPassword: c.GetString("credentials.keyring_password"),
	}
}

// GetAlert returns the alert transport configuration
func (c *Config) GetAlert() AlertConfig {
	return AlertConfig{
		Transport:      c.GetString("alert.transport"),
		SMTPAddress:    c.GetString("alert.smtp_address"),
		SMTPRequireTLS: c.GetBool("alert.smtp_require_tls"),
	}
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() (ServerConfig, error) {
	s := ServerConfig{ListenAddress: c.GetString("server.listen_address")}
	var err error
	if s.ShutdownTimeout, err = c.GetDuration("server.shutdown_timeout"); err != nil {
		return s, err
	}
	return s, nil
}
