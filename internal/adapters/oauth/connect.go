package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// Scopes requested when a principal connects Gmail
var Scopes = []string{gmail.GmailReadonlyScope, gmail.GmailSendScope}

// DefaultEndpoint is Google's OAuth endpoint
var DefaultEndpoint = google.Endpoint

const stateTTL = 10 * time.Minute

// ErrInvalidState is returned for unknown, reused or expired state values
var ErrInvalidState = errors.New("invalid or expired state parameter")

type pendingState struct {
	principalID string
	expires     time.Time
}

// Connector runs the authorization code flow that creates a principal's credential
type Connector struct {
	config     *oauth2.Config
	store      core.CredentialStore
	httpClient *http.Client
	logger     *zap.Logger

	mu     sync.Mutex
	states map[string]pendingState
	now    func() time.Time
}

// NewConnector creates a connector. endpoint defaults to DefaultEndpoint when its TokenURL is empty.
func NewConnector(
	clientID, clientSecret, redirectURL string,
	endpoint oauth2.Endpoint,
	store core.CredentialStore,
	httpClient *http.Client,
	logger *zap.Logger,
) *Connector {
	if endpoint.TokenURL == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Connector{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		store:      store,
		httpClient: httpClient,
		logger:     logger,
		states:     make(map[string]pendingState),
		now:        time.Now,
	}
}

// AuthURL returns the consent URL for the principal and the state bound to it
func (c *Connector) AuthURL(principalID string) (string, string, error) {
	state, err := c.generateState(principalID)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}
	url := c.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"))
	return url, state, nil
}

// Complete exchanges the authorization code and stores the resulting
// credential for the principal the state was issued to
func (c *Connector) Complete(ctx context.Context, code, state string) (string, error) {
	principalID, ok := c.validateState(state)
	if !ok {
		return "", ErrInvalidState
	}
	if code == "" {
		return "", errors.New("missing authorization code")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	cred := &core.OAuthCredential{
		PrincipalID:  principalID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		TokenURI:     c.config.Endpoint.TokenURL,
		ClientID:     c.config.ClientID,
		ClientSecret: c.config.ClientSecret,
		Scopes:       append([]string(nil), c.config.Scopes...),
		Expiry:       tok.Expiry,
	}

	// a reconnect without a fresh refresh token keeps the stored one
	if cred.RefreshToken == "" {
		if existing, err := c.store.GetCredential(ctx, principalID); err == nil {
			cred.RefreshToken = existing.RefreshToken
		}
	}

	if err := c.store.PutCredential(ctx, cred); err != nil {
		return "", fmt.Errorf("%w: failed to store credential: %w", core.ErrPersistence, err)
	}

	c.logger.Info("Connected Gmail",
		zap.String("principal_id", principalID),
		zap.Bool("has_refresh_token", cred.RefreshToken != ""))
	return principalID, nil
}

func (c *Connector) generateState(principalID string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.states[state] = pendingState{principalID: principalID, expires: now.Add(stateTTL)}

	for s, p := range c.states {
		if p.expires.Before(now) {
			delete(c.states, s)
		}
	}
	return state, nil
}

// validateState consumes state; it can be used once
func (c *Connector) validateState(state string) (string, bool) {
	if state == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.states[state]
	if !ok {
		return "", false
	}
	delete(c.states, state)

	if c.now().After(p.expires) {
		return "", false
	}
	return p.principalID, true
}
