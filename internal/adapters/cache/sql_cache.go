package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
)

// scoreRow is the score_cache table layout shared by the SQL backends
type scoreRow struct {
	Key          string       `db:"cache_key"`
	ModelVersion string       `db:"model_version"`
	Score        float64      `db:"score"`
	LastSeen     time.Time    `db:"last_seen"`
	ExpiresAt    sql.NullTime `db:"expires_at"`
}

func toRow(entry *core.ScoreCacheEntry) scoreRow {
	row := scoreRow{
		Key:          entry.Key,
		ModelVersion: entry.ModelVersion,
		Score:        entry.Score,
		LastSeen:     entry.LastSeen.UTC(),
	}
	if !entry.ExpiresAt.IsZero() {
		row.ExpiresAt = sql.NullTime{Time: entry.ExpiresAt.UTC(), Valid: true}
	}
	return row
}

func (r scoreRow) entry() *core.ScoreCacheEntry {
	e := &core.ScoreCacheEntry{
		Key:          r.Key,
		ModelVersion: r.ModelVersion,
		Score:        r.Score,
		LastSeen:     r.LastSeen,
	}
	if r.ExpiresAt.Valid {
		e.ExpiresAt = r.ExpiresAt.Time
	}
	return e
}

// sqlCache holds the queries both SQL backends run; only the upsert differs
type sqlCache struct {
	db          *sqlx.DB
	logger      *zap.Logger
	upsert      string
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	name        string
}

func newSQLCache(db *sqlx.DB, logger *zap.Logger, upsert string, cleanupFreq time.Duration, name string) *sqlCache {
	c := &sqlCache{
		db:          db,
		logger:      logger,
		upsert:      upsert,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		name:        name,
	}
	if cleanupFreq > 0 {
		go c.startCleanupTask()
	}
	return c
}

// Get retrieves a live cache entry
func (c *sqlCache) Get(ctx context.Context, key string) (*core.ScoreCacheEntry, error) {
	var row scoreRow
	err := c.db.GetContext(ctx, &row, `
		SELECT cache_key, model_version, score, last_seen, expires_at
		FROM score_cache
		WHERE cache_key = ? AND (expires_at IS NULL OR expires_at > ?)
	`, key, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	return row.entry(), nil
}

// Set stores a cache entry
func (c *sqlCache) Set(ctx context.Context, entry *core.ScoreCacheEntry) error {
	if _, err := c.db.NamedExecContext(ctx, c.upsert, toRow(entry)); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *sqlCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM score_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *sqlCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM score_cache
		WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

func (c *sqlCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database connection
func (c *sqlCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close "+c.name+" database", zap.Error(err))
		}
	})
}
