package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CredentialManager hands out valid credentials, refreshing expired ones
type CredentialManager struct {
	store          CredentialStore
	refresher      TokenRefresher
	logger         *zap.Logger
	refreshTimeout time.Duration
	flights        singleflight.Group
	now            func() time.Time
}

// NewCredentialManager creates a new credential manager
func NewCredentialManager(
	store CredentialStore,
	refresher TokenRefresher,
	logger *zap.Logger,
	refreshTimeout time.Duration,
) *CredentialManager {
	return &CredentialManager{
		store:          store,
		refresher:      refresher,
		logger:         logger,
		refreshTimeout: refreshTimeout,
		now:            time.Now,
	}
}

// GetValidCredential returns the principal's credential, refreshing it when expired
func (m *CredentialManager) GetValidCredential(ctx context.Context, principalID string) (*OAuthCredential, error) {
	cred, err := m.load(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if !cred.Expired(m.now()) {
		return cred, nil
	}

	return m.refreshShared(ctx, principalID, func(current *OAuthCredential) bool {
		return current.Expired(m.now())
	})
}

// RenewCredential refreshes a credential that the mail provider rejected even
// though it did not look expired, which is the case for records stored without
// an expiry. A stored access token that differs from the rejected one is
// returned as is.
func (m *CredentialManager) RenewCredential(ctx context.Context, principalID string, rejected *OAuthCredential) (*OAuthCredential, error) {
	return m.refreshShared(ctx, principalID, func(current *OAuthCredential) bool {
		return current.Expired(m.now()) || current.AccessToken == rejected.AccessToken
	})
}

func (m *CredentialManager) refreshShared(ctx context.Context, principalID string, stale func(*OAuthCredential) bool) (*OAuthCredential, error) {
	// Concurrent callers for the same principal share one refresh. The flight
	// is detached from the first caller's cancellation and bounded on its own.
	ch := m.flights.DoChan(principalID, func() (interface{}, error) {
		flightCtx := context.WithoutCancel(ctx)
		if m.refreshTimeout > 0 {
			var cancel context.CancelFunc
			flightCtx, cancel = context.WithTimeout(flightCtx, m.refreshTimeout)
			defer cancel()
		}
		return m.refresh(flightCtx, principalID, stale)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*OAuthCredential).Clone(), nil
	}
}

func (m *CredentialManager) load(ctx context.Context, principalID string) (*OAuthCredential, error) {
	cred, err := m.store.GetCredential(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return cred, nil
}

func (m *CredentialManager) refresh(ctx context.Context, principalID string, stale func(*OAuthCredential) bool) (*OAuthCredential, error) {
	// Another flight may have refreshed between our read and now.
	current, err := m.load(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if !stale(current) {
		return current, nil
	}
	if current.RefreshToken == "" {
		return nil, fmt.Errorf("%w: access token expired and no refresh token is stored", ErrRefreshFailed)
	}

	grant, err := m.refresher.Refresh(ctx, current)
	if err != nil {
		m.logger.Warn("Credential refresh failed",
			zap.String("principal_id", principalID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if grant.AccessToken == "" {
		return nil, fmt.Errorf("%w: token endpoint returned no access token", ErrRefreshFailed)
	}

	refreshed := current.Clone()
	refreshed.AccessToken = grant.AccessToken
	refreshed.Expiry = grant.Expiry
	if grant.TokenType != "" {
		refreshed.TokenType = grant.TokenType
	}
	// An omitted refresh token means "unchanged", never "revoked".
	if grant.RefreshToken != "" {
		refreshed.RefreshToken = grant.RefreshToken
	}

	if err := m.store.PutCredential(ctx, refreshed); err != nil {
		return nil, fmt.Errorf("%w: failed to store refreshed credential: %w", ErrPersistence, err)
	}

	m.logger.Info("Refreshed credential",
		zap.String("principal_id", principalID),
		zap.Time("expiry", refreshed.Expiry),
		zap.Bool("refresh_token_rotated", grant.RefreshToken != "" && grant.RefreshToken != current.RefreshToken))

	return refreshed, nil
}
