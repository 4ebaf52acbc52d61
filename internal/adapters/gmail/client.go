// Package gmail reads and sends mail through the Gmail API on behalf of a principal.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const gmailUserID = "me"

// Client implements core.MailFetcher and core.AlertSender
type Client struct {
	endpoint   string
	httpClient *http.Client
	policy     retry.Policy
	logger     *zap.Logger
}

// NewClient creates a Gmail client. endpoint overrides the API base URL and
// is empty in production; httpClient is the transport under the bearer token.
func NewClient(endpoint string, httpClient *http.Client, policy retry.Policy, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		policy:     policy,
		logger:     logger,
	}
}

func (c *Client) newSvc(ctx context.Context, cred *core.OAuthCredential) (*gmail.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   cred.TokenType,
	})
	clt := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), ts)

	opts := []option.ClientOption{option.WithHTTPClient(clt)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}
	return svc, nil
}

// call runs fn under the retry policy and maps the final error onto the scan taxonomy
func (c *Client) call(ctx context.Context, policy retry.Policy, op string, fn func() error) error {
	attempt := 0
	err := retry.Do(ctx, policy, func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return retry.Permanent(err)
		}
		c.logger.Debug("Gmail call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	})
	if err == nil {
		return nil
	}
	if isUnauthorized(err) {
		return fmt.Errorf("%w: %s failed: %w", core.ErrAuthExpired, op, err)
	}
	return fmt.Errorf("%w: %s failed: %w", core.ErrFetchUnavailable, op, err)
}

func isUnauthorized(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized
}

// retryable is true for rate limiting, server errors and transport failures
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	return true
}
