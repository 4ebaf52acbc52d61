package core

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"
)

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh(ctx context.Context, cred *OAuthCredential) (*TokenGrant, error) {
	args := m.Called(ctx, cred)
	grant, _ := args.Get(0).(*TokenGrant)
	return grant, args.Error(1)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) ListRecent(ctx context.Context, cred *OAuthCredential, query string, maxCount int) ([]MailMessageSummary, error) {
	args := m.Called(ctx, cred, query, maxCount)
	msgs, _ := args.Get(0).([]MailMessageSummary)
	return msgs, args.Error(1)
}

type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(ctx context.Context, text string) (float64, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockScorer) ModelVersion() string {
	return "mock-v1"
}

type MockAlertSender struct {
	mock.Mock
}

func (m *MockAlertSender) SendRaw(ctx context.Context, cred *OAuthCredential, from string, to []string, message []byte) error {
	args := m.Called(ctx, cred, from, to, message)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, principal *Principal, subject, sender, snippet string, score float64) error {
	args := m.Called(ctx, principal, subject, sender, snippet, score)
	return args.Error(0)
}

type MockCredentialProvider struct {
	mock.Mock
}

func (m *MockCredentialProvider) GetValidCredential(ctx context.Context, principalID string) (*OAuthCredential, error) {
	args := m.Called(ctx, principalID)
	cred, _ := args.Get(0).(*OAuthCredential)
	return cred, args.Error(1)
}

func (m *MockCredentialProvider) RenewCredential(ctx context.Context, principalID string, rejected *OAuthCredential) (*OAuthCredential, error) {
	args := m.Called(ctx, principalID, rejected)
	cred, _ := args.Get(0).(*OAuthCredential)
	return cred, args.Error(1)
}

// fakeCredentialStore is a map backed CredentialStore that counts writes
type fakeCredentialStore struct {
	mu     sync.Mutex
	creds  map[string]*OAuthCredential
	puts   int
	putErr error
}

func newFakeCredentialStore(creds ...*OAuthCredential) *fakeCredentialStore {
	s := &fakeCredentialStore{creds: make(map[string]*OAuthCredential)}
	for _, c := range creds {
		s.creds[c.PrincipalID] = c.Clone()
	}
	return s
}

func (s *fakeCredentialStore) GetCredential(_ context.Context, principalID string) (*OAuthCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[principalID]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return c.Clone(), nil
}

func (s *fakeCredentialStore) PutCredential(_ context.Context, cred *OAuthCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts++
	s.creds[cred.PrincipalID] = cred.Clone()
	return nil
}

// fakeResultStore records saves and can fail selected message ids
type fakeResultStore struct {
	mu      sync.Mutex
	saved   []ScanResult
	failFor map[string]error
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{failFor: make(map[string]error)}
}

func (s *fakeResultStore) Save(_ context.Context, result *ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[result.MessageID]; ok {
		return err
	}
	s.saved = append(s.saved, *result)
	return nil
}

func (s *fakeResultStore) CountByLabel(_ context.Context, principalID string, label Label) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.saved {
		if r.PrincipalID == principalID && r.Label == label {
			n++
		}
	}
	return n, nil
}

func (s *fakeResultStore) Latest(_ context.Context, principalID string, limit int) ([]ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ScanResult{}
	for i := len(s.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if s.saved[i].PrincipalID == principalID {
			out = append(out, s.saved[i])
		}
	}
	return out, nil
}

func (s *fakeResultStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

var errCacheMiss = errors.New("cache miss")

// fakeScoreCache is a map backed ScoreCache
type fakeScoreCache struct {
	mu      sync.Mutex
	entries map[string]*ScoreCacheEntry
}

func newFakeScoreCache() *fakeScoreCache {
	return &fakeScoreCache{entries: make(map[string]*ScoreCacheEntry)}
}

func (c *fakeScoreCache) Get(_ context.Context, key string) (*ScoreCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, errCacheMiss
	}
	return e, nil
}

func (c *fakeScoreCache) Set(_ context.Context, entry *ScoreCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Key] = entry
	return nil
}

func (c *fakeScoreCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *fakeScoreCache) Cleanup(context.Context) error {
	return nil
}
