package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
)

var postgresMigrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS principals (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS credentials (
				principal_id TEXT PRIMARY KEY,
				record JSONB NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS scan_results (
				seq BIGSERIAL PRIMARY KEY,
				id TEXT NOT NULL UNIQUE,
				principal_id TEXT NOT NULL,
				message_id TEXT NOT NULL,
				subject TEXT NOT NULL,
				sender TEXT NOT NULL,
				snippet TEXT NOT NULL,
				score DOUBLE PRECISION NOT NULL,
				label INTEGER NOT NULL,
				model_version TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_scan_results_principal_created
				ON scan_results(principal_id, created_at DESC)`,
		},
	},
}

// PostgresStore implements the principal, credential and result ports on a pgx pool
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates the connection pool, pings it and applies migrations
func NewPostgresStore(ctx context.Context, connString string, logger *zap.Logger) (*PostgresStore, error) {
	if connString == "" {
		return nil, fmt.Errorf("store.postgres_url not configured")
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies outstanding schema migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range postgresMigrations {
		if m.version <= current {
			continue
		}
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, m.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration v%d: %w", m.version, err)
		}
		s.logger.Info("Applied schema migration",
			zap.String("dialect", "postgres"),
			zap.Int("version", m.version))
	}
	return nil
}

// GetPrincipal implements core.PrincipalStore
func (s *PostgresStore) GetPrincipal(ctx context.Context, id string) (*core.Principal, error) {
	var p core.Principal
	err := s.pool.QueryRow(ctx, `SELECT id, email FROM principals WHERE id = $1`, id).Scan(&p.ID, &p.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("failed to query principal %s: %w", id, err)
	}
	return &p, nil
}

// PutPrincipal implements core.PrincipalStore
func (s *PostgresStore) PutPrincipal(ctx context.Context, principal *core.Principal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO principals (id, email) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email`,
		principal.ID, principal.Email)
	if err != nil {
		return fmt.Errorf("failed to store principal %s: %w", principal.ID, err)
	}
	return nil
}

// GetCredential implements core.CredentialStore
func (s *PostgresStore) GetCredential(ctx context.Context, principalID string) (*core.OAuthCredential, error) {
	var record []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM credentials WHERE principal_id = $1`, principalID).Scan(&record)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}
	return core.DecodeCredential(principalID, record)
}

// PutCredential implements core.CredentialStore
func (s *PostgresStore) PutCredential(ctx context.Context, cred *core.OAuthCredential) error {
	record, err := core.EncodeCredential(cred)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO credentials (principal_id, record, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (principal_id) DO UPDATE SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
		cred.PrincipalID, string(record))
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Save implements core.ResultStore
func (s *PostgresStore) Save(ctx context.Context, result *core.ScanResult) error {
	r := toResultRow(result)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_results (
			id, principal_id, message_id, subject, sender, snippet,
			score, label, model_version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.PrincipalID, r.MessageID, r.Subject, r.Sender, r.Snippet,
		r.Score, r.Label, r.ModelVersion, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert scan result %s: %w", result.ID, err)
	}
	return nil
}

// CountByLabel implements core.ResultStore
func (s *PostgresStore) CountByLabel(ctx context.Context, principalID string, label core.Label) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM scan_results WHERE principal_id = $1 AND label = $2`,
		principalID, int(label)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count scan results: %w", err)
	}
	return n, nil
}

// Latest implements core.ResultStore
func (s *PostgresStore) Latest(ctx context.Context, principalID string, limit int) ([]core.ScanResult, error) {
	if limit <= 0 {
		return []core.ScanResult{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, principal_id, message_id, subject, sender, snippet,
			score, label, model_version, created_at
		FROM scan_results
		WHERE principal_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest scan results: %w", err)
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[resultRow])
	if err != nil {
		return nil, fmt.Errorf("failed to scan latest scan results: %w", err)
	}
	return toResults(collected), nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
