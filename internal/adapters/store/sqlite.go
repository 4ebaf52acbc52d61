package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	migrations: []migration{
		{
			version: 1,
			statements: []string{
				`CREATE TABLE IF NOT EXISTS principals (
					id TEXT PRIMARY KEY,
					email TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS credentials (
					principal_id TEXT PRIMARY KEY,
					record BLOB NOT NULL,
					updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE IF NOT EXISTS scan_results (
					seq INTEGER PRIMARY KEY AUTOINCREMENT,
					id TEXT NOT NULL UNIQUE,
					principal_id TEXT NOT NULL,
					message_id TEXT NOT NULL,
					subject TEXT NOT NULL,
					sender TEXT NOT NULL,
					snippet TEXT NOT NULL,
					score REAL NOT NULL,
					label INTEGER NOT NULL,
					model_version TEXT NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_scan_results_principal_created
					ON scan_results(principal_id, created_at)`,
			},
		},
	},
	upsertPrincipal: `INSERT INTO principals (id, email) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email`,
	upsertCredential: `INSERT INTO credentials (principal_id, record, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(principal_id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
}

// NewSQLiteStore opens (or creates) a SQLite database and applies migrations
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if dbPath == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return newSQLStore(db, sqliteDialect, logger)
}
