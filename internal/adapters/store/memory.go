package store

import (
	"context"
	"sort"
	"sync"

	"github.com/phishguard/phishguard/internal/core"
)

// MemoryStore keeps everything in process memory
type MemoryStore struct {
	mu          sync.RWMutex
	principals  map[string]core.Principal
	credentials map[string][]byte
	results     map[string][]core.ScanResult
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		principals:  make(map[string]core.Principal),
		credentials: make(map[string][]byte),
		results:     make(map[string][]core.ScanResult),
	}
}

// GetPrincipal implements core.PrincipalStore
func (s *MemoryStore) GetPrincipal(ctx context.Context, id string) (*core.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[id]
	if !ok {
		return nil, core.ErrPrincipalNotFound
	}
	return &p, nil
}

// PutPrincipal implements core.PrincipalStore
func (s *MemoryStore) PutPrincipal(ctx context.Context, principal *core.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.principals[principal.ID] = *principal
	return nil
}

// GetCredential implements core.CredentialStore. Records are kept encoded so
// that the memory backend exercises the same record format as the others.
func (s *MemoryStore) GetCredential(ctx context.Context, principalID string) (*core.OAuthCredential, error) {
	s.mu.RLock()
	data, ok := s.credentials[principalID]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrCredentialNotFound
	}
	return core.DecodeCredential(principalID, data)
}

// PutCredential implements core.CredentialStore
func (s *MemoryStore) PutCredential(ctx context.Context, cred *core.OAuthCredential) error {
	data, err := core.EncodeCredential(cred)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[cred.PrincipalID] = data
	return nil
}

// Save implements core.ResultStore
func (s *MemoryStore) Save(ctx context.Context, result *core.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[result.PrincipalID] = append(s.results[result.PrincipalID], *result)
	return nil
}

// CountByLabel implements core.ResultStore
func (s *MemoryStore) CountByLabel(ctx context.Context, principalID string, label core.Label) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.results[principalID] {
		if r.Label == label {
			n++
		}
	}
	return n, nil
}

// Latest implements core.ResultStore
func (s *MemoryStore) Latest(ctx context.Context, principalID string, limit int) ([]core.ScanResult, error) {
	if limit <= 0 {
		return []core.ScanResult{}, nil
	}

	s.mu.RLock()
	stored := s.results[principalID]
	out := make([]core.ScanResult, len(stored))
	// newest inserted first, so that the stable sort breaks ties the same way
	for i, r := range stored {
		out[len(stored)-1-i] = r
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
