package store

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	migrations: []migration{
		{
			version: 1,
			statements: []string{
				`CREATE TABLE IF NOT EXISTS principals (
					id VARCHAR(64) PRIMARY KEY,
					email VARCHAR(320) NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS credentials (
					principal_id VARCHAR(64) PRIMARY KEY,
					record BLOB NOT NULL,
					updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
				)`,
				`CREATE TABLE IF NOT EXISTS scan_results (
					seq BIGINT AUTO_INCREMENT PRIMARY KEY,
					id CHAR(36) NOT NULL UNIQUE,
					principal_id VARCHAR(64) NOT NULL,
					message_id VARCHAR(255) NOT NULL,
					subject TEXT NOT NULL,
					sender TEXT NOT NULL,
					snippet TEXT NOT NULL,
					score DOUBLE NOT NULL,
					label TINYINT NOT NULL,
					model_version VARCHAR(128) NOT NULL,
					created_at DATETIME(6) NOT NULL,
					INDEX idx_scan_results_principal_created (principal_id, created_at)
				)`,
			},
		},
	},
	upsertPrincipal: `INSERT INTO principals (id, email) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE email = VALUES(email)`,
	upsertCredential: `INSERT INTO credentials (principal_id, record, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP(6))
		ON DUPLICATE KEY UPDATE record = VALUES(record), updated_at = VALUES(updated_at)`,
}

// NewMySQLStore connects to MySQL and applies migrations. parseTime is forced on
// so DATETIME columns scan into time.Time.
func NewMySQLStore(dsn string, logger *zap.Logger) (*SQLStore, error) {
	dsn, err := mysqlDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	return newSQLStore(db, mysqlDialect, logger)
}

func mysqlDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("store.mysql_dsn not configured")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
