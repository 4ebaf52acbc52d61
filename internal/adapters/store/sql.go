package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
)

// dialect carries what differs between the database/sql backends
type dialect struct {
	name             string
	migrations       []migration
	upsertPrincipal  string
	upsertCredential string
}

// SQLStore implements the principal, credential and result ports on top of sqlx
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	logger  *zap.Logger
}

func newSQLStore(db *sqlx.DB, d dialect, logger *zap.Logger) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d, logger: logger}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies outstanding schema migrations
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	if err := s.db.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range s.dialect.migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration v%d: %w", m.version, err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to apply migration v%d: %w", m.version, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration v%d: %w", m.version, err)
		}
		s.logger.Info("Applied schema migration",
			zap.String("dialect", s.dialect.name),
			zap.Int("version", m.version))
	}
	return nil
}

// GetPrincipal implements core.PrincipalStore
func (s *SQLStore) GetPrincipal(ctx context.Context, id string) (*core.Principal, error) {
	var p struct {
		ID    string `db:"id"`
		Email string `db:"email"`
	}
	err := s.db.GetContext(ctx, &p, `SELECT id, email FROM principals WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("failed to query principal %s: %w", id, err)
	}
	return &core.Principal{ID: p.ID, Email: p.Email}, nil
}

// PutPrincipal implements core.PrincipalStore
func (s *SQLStore) PutPrincipal(ctx context.Context, principal *core.Principal) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.upsertPrincipal, principal.ID, principal.Email); err != nil {
		return fmt.Errorf("failed to store principal %s: %w", principal.ID, err)
	}
	return nil
}

// GetCredential implements core.CredentialStore
func (s *SQLStore) GetCredential(ctx context.Context, principalID string) (*core.OAuthCredential, error) {
	var record []byte
	err := s.db.GetContext(ctx, &record, `SELECT record FROM credentials WHERE principal_id = ?`, principalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}
	return core.DecodeCredential(principalID, record)
}

// PutCredential implements core.CredentialStore. The record is replaced in a single statement.
func (s *SQLStore) PutCredential(ctx context.Context, cred *core.OAuthCredential) error {
	record, err := core.EncodeCredential(cred)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsertCredential, cred.PrincipalID, record); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Save implements core.ResultStore
func (s *SQLStore) Save(ctx context.Context, result *core.ScanResult) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO scan_results (
			id, principal_id, message_id, subject, sender, snippet,
			score, label, model_version, created_at
		) VALUES (
			:id, :principal_id, :message_id, :subject, :sender, :snippet,
			:score, :label, :model_version, :created_at
		)`, toResultRow(result))
	if err != nil {
		return fmt.Errorf("failed to insert scan result %s: %w", result.ID, err)
	}
	return nil
}

// CountByLabel implements core.ResultStore
func (s *SQLStore) CountByLabel(ctx context.Context, principalID string, label core.Label) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM scan_results WHERE principal_id = ? AND label = ?`,
		principalID, int(label))
	if err != nil {
		return 0, fmt.Errorf("failed to count scan results: %w", err)
	}
	return n, nil
}

// Latest implements core.ResultStore
func (s *SQLStore) Latest(ctx context.Context, principalID string, limit int) ([]core.ScanResult, error) {
	if limit <= 0 {
		return []core.ScanResult{}, nil
	}

	var rows []resultRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, principal_id, message_id, subject, sender, snippet,
			score, label, model_version, created_at
		FROM scan_results
		WHERE principal_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?`, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest scan results: %w", err)
	}
	return toResults(rows), nil
}

// Close closes the underlying database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}
