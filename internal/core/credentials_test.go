package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testCredential(expiry time.Time) *OAuthCredential {
	return &OAuthCredential{
		PrincipalID:  "p1",
		AccessToken:  "old-access",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		TokenURI:     "https://oauth2.example.com/token",
		ClientID:     "client",
		ClientSecret: "secret",
		Scopes:       []string{"https://www.googleapis.com/auth/gmail.readonly"},
		Expiry:       expiry,
	}
}

func newTestCredentialManager(store CredentialStore, refresher TokenRefresher) *CredentialManager {
	m := NewCredentialManager(store, refresher, zap.NewNop(), time.Second)
	m.now = func() time.Time { return testNow }
	return m
}

func TestGetValidCredential_NotConnected(t *testing.T) {
	refresher := new(MockRefresher)
	m := newTestCredentialManager(newFakeCredentialStore(), refresher)

	_, err := m.GetValidCredential(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrNotConnected)
	refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestGetValidCredential_ValidIsNoOp(t *testing.T) {
	for name, expiry := range map[string]time.Time{
		"future expiry": testNow.Add(time.Hour),
		"unknown expiry": {},
	} {
		t.Run(name, func(t *testing.T) {
			store := newFakeCredentialStore(testCredential(expiry))
			refresher := new(MockRefresher)
			m := newTestCredentialManager(store, refresher)

			cred, err := m.GetValidCredential(context.Background(), "p1")
			require.NoError(t, err)
			assert.Equal(t, "old-access", cred.AccessToken)
			assert.Equal(t, 0, store.puts)
			refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
		})
	}
}

func TestGetValidCredential_RefreshPreservesRefreshToken(t *testing.T) {
	store := newFakeCredentialStore(testCredential(testNow.Add(-time.Minute)))
	refresher := new(MockRefresher)
	newExpiry := testNow.Add(time.Hour)
	refresher.On("Refresh", mock.Anything, mock.MatchedBy(func(c *OAuthCredential) bool {
		return c.RefreshToken == "refresh-1"
	})).Return(&TokenGrant{AccessToken: "new-access", Expiry: newExpiry}, nil).Once()

	m := newTestCredentialManager(store, refresher)
	cred, err := m.GetValidCredential(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "new-access", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)
	assert.Equal(t, newExpiry, cred.Expiry)

	// exactly one record, fully replaced
	assert.Equal(t, 1, store.puts)
	assert.Len(t, store.creds, 1)
	stored, err := store.GetCredential(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "new-access", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
	assert.Equal(t, "client", stored.ClientID)
	refresher.AssertExpectations(t)
}

func TestGetValidCredential_RefreshTokenRotation(t *testing.T) {
	store := newFakeCredentialStore(testCredential(testNow))
	refresher := new(MockRefresher)
	refresher.On("Refresh", mock.Anything, mock.Anything).
		Return(&TokenGrant{AccessToken: "new-access", RefreshToken: "refresh-2", Expiry: testNow.Add(time.Hour)}, nil)

	m := newTestCredentialManager(store, refresher)
	cred, err := m.GetValidCredential(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", cred.RefreshToken)
}

func TestGetValidCredential_RefreshFailures(t *testing.T) {
	expired := testNow.Add(-time.Minute)

	cases := []struct {
		name      string
		cred      *OAuthCredential
		grant     *TokenGrant
		refreshEr error
		putErr    error
		expected  error
	}{
		{
			name:      "token endpoint rejects",
			cred:      testCredential(expired),
			refreshEr: errors.New("invalid_grant"),
			expected:  ErrRefreshFailed,
		},
		{
			name: "no refresh token stored",
			cred: func() *OAuthCredential {
				c := testCredential(expired)
				c.RefreshToken = ""
				return c
			}(),
			expected: ErrRefreshFailed,
		},
		{
			name:     "empty access token in grant",
			cred:     testCredential(expired),
			grant:    &TokenGrant{},
			expected: ErrRefreshFailed,
		},
		{
			name:     "store write fails",
			cred:     testCredential(expired),
			grant:    &TokenGrant{AccessToken: "new-access", Expiry: testNow.Add(time.Hour)},
			putErr:   errors.New("disk full"),
			expected: ErrPersistence,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeCredentialStore(tc.cred)
			store.putErr = tc.putErr
			refresher := new(MockRefresher)
			refresher.On("Refresh", mock.Anything, mock.Anything).Return(tc.grant, tc.refreshEr).Maybe()

			m := newTestCredentialManager(store, refresher)
			_, err := m.GetValidCredential(context.Background(), "p1")
			assert.ErrorIs(t, err, tc.expected)

			stored, getErr := store.GetCredential(context.Background(), "p1")
			require.NoError(t, getErr)
			assert.Equal(t, "old-access", stored.AccessToken)
			assert.Equal(t, 0, store.puts)
		})
	}
}

func TestGetValidCredential_ConcurrentCallersShareOneRefresh(t *testing.T) {
	store := newFakeCredentialStore(testCredential(testNow.Add(-time.Minute)))
	refresher := new(MockRefresher)
	release := make(chan struct{})
	refresher.On("Refresh", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&TokenGrant{AccessToken: "new-access", Expiry: testNow.Add(time.Hour)}, nil).
		Once()

	m := newTestCredentialManager(store, refresher)

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cred, err := m.GetValidCredential(context.Background(), "p1")
			errs[i] = err
			if cred != nil {
				tokens[i] = cred.AccessToken
			}
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "new-access", tokens[i])
	}
	assert.Equal(t, 1, store.puts)
	refresher.AssertNumberOfCalls(t, "Refresh", 1)
}

func TestGetValidCredential_CancelledCallerDoesNotFailFlight(t *testing.T) {
	store := newFakeCredentialStore(testCredential(testNow.Add(-time.Minute)))
	refresher := new(MockRefresher)
	release := make(chan struct{})
	refresher.On("Refresh", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&TokenGrant{AccessToken: "new-access", Expiry: testNow.Add(time.Hour)}, nil).
		Once()

	m := newTestCredentialManager(store, refresher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.GetValidCredential(ctx, "p1")
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.puts == 1
	}, time.Second, 5*time.Millisecond)

	cred, err := m.GetValidCredential(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "new-access", cred.AccessToken)
}

func TestRenewCredential(t *testing.T) {
	replaced := testCredential(time.Time{})
	replaced.AccessToken = "other-access"

	cases := []struct {
		name          string
		stored        *OAuthCredential
		expectedToken string
		refreshes     int
	}{
		{name: "unknown expiry is refreshed", stored: testCredential(time.Time{}), expectedToken: "new-access", refreshes: 1},
		{name: "already replaced", stored: replaced, expectedToken: "other-access", refreshes: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeCredentialStore(tc.stored)
			refresher := new(MockRefresher)
			newExpiry := testNow.Add(time.Hour)
			refresher.On("Refresh", mock.Anything, mock.Anything).
				Return(&TokenGrant{AccessToken: "new-access", Expiry: newExpiry}, nil).Maybe()

			m := newTestCredentialManager(store, refresher)
			cred, err := m.RenewCredential(context.Background(), "p1", testCredential(time.Time{}))
			require.NoError(t, err)

			assert.Equal(t, tc.expectedToken, cred.AccessToken)
			assert.Equal(t, "refresh-1", cred.RefreshToken)
			assert.Equal(t, tc.refreshes, store.puts)
			refresher.AssertNumberOfCalls(t, "Refresh", tc.refreshes)
			if tc.refreshes > 0 {
				// the renewed record carries a real expiry from now on
				assert.Equal(t, newExpiry, cred.Expiry)
				assert.False(t, cred.Expired(testNow))
			}
		})
	}
}

func TestRenewCredential_NoRefreshToken(t *testing.T) {
	stored := testCredential(time.Time{})
	stored.RefreshToken = ""
	store := newFakeCredentialStore(stored)
	refresher := new(MockRefresher)

	m := newTestCredentialManager(store, refresher)
	_, err := m.RenewCredential(context.Background(), "p1", stored)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.Equal(t, 0, store.puts)
	refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}
