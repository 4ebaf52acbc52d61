package cache

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// MySQLCache is a MySQL implementation of the ScoreCache port.
// The DSN must carry parseTime=true.
type MySQLCache struct {
	*sqlCache
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS score_cache (
			cache_key VARCHAR(255) PRIMARY KEY,
			model_version VARCHAR(128) NOT NULL,
			score DOUBLE NOT NULL,
			last_seen DATETIME(6) NOT NULL,
			expires_at DATETIME(6) NULL,
			INDEX idx_score_cache_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	upsert := `
		INSERT INTO score_cache (cache_key, model_version, score, last_seen, expires_at)
		VALUES (:cache_key, :model_version, :score, :last_seen, :expires_at)
		ON DUPLICATE KEY UPDATE
			model_version = VALUES(model_version),
			score = VALUES(score),
			last_seen = VALUES(last_seen),
			expires_at = VALUES(expires_at)
	`
	return &MySQLCache{newSQLCache(db, logger, upsert, cleanupFreq, "MySQL")}, nil
}
