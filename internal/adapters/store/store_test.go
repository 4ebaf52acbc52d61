package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/phishguard/phishguard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testStore interface {
	core.ResultStore
	core.CredentialStore
	core.PrincipalStore
}

func newTestStores(t *testing.T) map[string]testStore {
	t.Helper()

	sqlite, err := NewSQLiteStore(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := sqlite.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	stores := map[string]testStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
	if pg := newPostgresTestStore(t); pg != nil {
		stores["postgres"] = pg
	}
	if my := newMySQLTestStore(t); my != nil {
		stores["mysql"] = my
	}
	return stores
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func result(id, principal string, label core.Label, createdAt time.Time) *core.ScanResult {
	return &core.ScanResult{
		ID:           id,
		PrincipalID:  principal,
		MessageID:    "m-" + id,
		Subject:      "subject " + id,
		Sender:       "sender@example.com",
		Snippet:      "snippet " + id,
		Score:        0.25 + 0.5*float64(label),
		Label:        label,
		ModelVersion: "lexicon-test",
		CreatedAt:    createdAt,
	}
}

func TestResultStore(t *testing.T) {
	ctx := context.Background()
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, result("r1", "p1", core.LabelBenign, base)))
			require.NoError(t, s.Save(ctx, result("r2", "p1", core.LabelPhishing, base.Add(time.Minute))))
			// same timestamp as r2, inserted later
			require.NoError(t, s.Save(ctx, result("r3", "p1", core.LabelPhishing, base.Add(time.Minute))))
			require.NoError(t, s.Save(ctx, result("r4", "p2", core.LabelPhishing, base.Add(time.Hour))))

			benign, err := s.CountByLabel(ctx, "p1", core.LabelBenign)
			require.NoError(t, err)
			assert.Equal(t, 1, benign)
			phishing, err := s.CountByLabel(ctx, "p1", core.LabelPhishing)
			require.NoError(t, err)
			assert.Equal(t, 2, phishing)

			latest, err := s.Latest(ctx, "p1", 10)
			require.NoError(t, err)
			require.Len(t, latest, 3)
			assert.Equal(t, []string{"r3", "r2", "r1"}, []string{latest[0].ID, latest[1].ID, latest[2].ID})
			assert.Equal(t, *result("r3", "p1", core.LabelPhishing, base.Add(time.Minute)), latest[0])

			limited, err := s.Latest(ctx, "p1", 2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)

			none, err := s.Latest(ctx, "p1", 0)
			require.NoError(t, err)
			assert.Empty(t, none)

			other, err := s.Latest(ctx, "nobody", 5)
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestResultStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.Save(ctx, result(fmt.Sprintf("c%d", i), "p1", core.Label(i%2), base)))
				}(i)
			}
			wg.Wait()

			benign, err := s.CountByLabel(ctx, "p1", core.LabelBenign)
			require.NoError(t, err)
			phishing, err := s.CountByLabel(ctx, "p1", core.LabelPhishing)
			require.NoError(t, err)
			assert.Equal(t, 20, benign+phishing)
		})
	}
}

func TestCredentialStore(t *testing.T) {
	ctx := context.Background()
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetCredential(ctx, "p1")
			assert.ErrorIs(t, err, core.ErrCredentialNotFound)

			cred := &core.OAuthCredential{
				PrincipalID:  "p1",
				AccessToken:  "access-1",
				RefreshToken: "refresh-1",
				TokenType:    "Bearer",
				TokenURI:     "https://oauth2.googleapis.com/token",
				ClientID:     "client",
				ClientSecret: "secret",
				Scopes:       []string{"a", "b"},
				Expiry:       base,
			}
			require.NoError(t, s.PutCredential(ctx, cred))

			replaced := cred.Clone()
			replaced.AccessToken = "access-2"
			require.NoError(t, s.PutCredential(ctx, replaced))

			got, err := s.GetCredential(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, "access-2", got.AccessToken)
			assert.Equal(t, "refresh-1", got.RefreshToken)
			assert.Equal(t, []string{"a", "b"}, got.Scopes)
			assert.True(t, base.Equal(got.Expiry))

			invalid := cred.Clone()
			invalid.AccessToken = ""
			assert.Error(t, s.PutCredential(ctx, invalid))
		})
	}
}

func TestPrincipalStore(t *testing.T) {
	ctx := context.Background()
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetPrincipal(ctx, "p1")
			assert.ErrorIs(t, err, core.ErrPrincipalNotFound)

			require.NoError(t, s.PutPrincipal(ctx, &core.Principal{ID: "p1", Email: "old@example.com"}))
			require.NoError(t, s.PutPrincipal(ctx, &core.Principal{ID: "p1", Email: "alice@example.com"}))

			p, err := s.GetPrincipal(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, &core.Principal{ID: "p1", Email: "alice@example.com"}, p)
		})
	}
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	s, err := NewSQLiteStore(":memory:", zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Migrate(context.Background()))

	var version int
	require.NoError(t, s.db.Get(&version, `SELECT MAX(version) FROM schema_version`))
	assert.Equal(t, 1, version)

	var rows int
	require.NoError(t, s.db.Get(&rows, `SELECT COUNT(*) FROM schema_version`))
	assert.Equal(t, 1, rows)
}
