// Package oauth talks to the OAuth provider: it refreshes stored credentials
// and runs the authorization code flow that creates them.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Refresher implements core.TokenRefresher against the credential's own token endpoint
type Refresher struct {
	httpClient *http.Client
	policy     retry.Policy
	logger     *zap.Logger
}

// NewRefresher creates a new token refresher. A nil client means http.DefaultClient.
func NewRefresher(httpClient *http.Client, policy retry.Policy, logger *zap.Logger) *Refresher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Refresher{
		httpClient: httpClient,
		policy:     policy,
		logger:     logger,
	}
}

// Refresh exchanges the refresh token for a new access token. Rejections by
// the endpoint are returned at once, network and server failures are retried.
func (r *Refresher) Refresh(ctx context.Context, cred *core.OAuthCredential) (*core.TokenGrant, error) {
	cfg := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cred.TokenURI,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: cred.Scopes,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)

	var tok *oauth2.Token
	attempt := 0
	err := retry.Do(ctx, r.policy, func() error {
		attempt++
		t, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
		if err != nil {
			if rejected(err) {
				return retry.Permanent(err)
			}
			r.logger.Debug("Token refresh attempt failed",
				zap.String("principal_id", cred.PrincipalID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		tok = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	grant := &core.TokenGrant{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Expiry:      tok.Expiry,
	}
	// oauth2 copies the old refresh token into the result when none was issued
	if tok.RefreshToken != cred.RefreshToken {
		grant.RefreshToken = tok.RefreshToken
	}
	return grant, nil
}

// rejected reports whether the endpoint answered with a client error such as invalid_grant
func rejected(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return false
	}
	code := re.Response.StatusCode
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}
