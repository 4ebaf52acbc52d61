package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// PhishingThreshold is the fixed score at and above which a message is flagged
const PhishingThreshold = 0.5

// LabelFor derives the binary label from a score
func LabelFor(score float64) Label {
	if score >= PhishingThreshold {
		return LabelPhishing
	}
	return LabelBenign
}

// Classifier scores message text with an injected model.
// A Classifier without a scorer is the explicit "not ready" state.
type Classifier struct {
	scorer       Scorer
	cache        ScoreCache
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
}

// NewClassifier creates a new classifier; scorer may be nil when no model is loaded
func NewClassifier(
	scorer Scorer,
	cache ScoreCache,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
) *Classifier {
	return &Classifier{
		scorer:       scorer,
		cache:        cache,
		logger:       logger,
		cacheEnabled: cacheEnabled && cache != nil,
		cacheTTL:     cacheTTL,
	}
}

// Ready returns ErrClassifierUnavailable when no model is loaded
func (c *Classifier) Ready() error {
	if c == nil || c.scorer == nil {
		return ErrClassifierUnavailable
	}
	return nil
}

// ModelVersion returns the loaded model's version, or "" when not ready
func (c *Classifier) ModelVersion() string {
	if c.Ready() != nil {
		return ""
	}
	return c.scorer.ModelVersion()
}

// Score returns the phishing probability of text in [0,1]
func (c *Classifier) Score(ctx context.Context, text string) (float64, error) {
	if err := c.Ready(); err != nil {
		return 0, err
	}

	key := scoreCacheKey(c.scorer.ModelVersion(), text)
	if c.cacheEnabled {
		if entry, err := c.cache.Get(ctx, key); err == nil {
			c.logger.Debug("Score cache hit", zap.String("model", entry.ModelVersion))
			return entry.Score, nil
		}
	}

	score, err := c.scorer.Score(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("failed to score text with %s: %w", c.scorer.ModelVersion(), err)
	}
	if math.IsNaN(score) {
		return 0, fmt.Errorf("model %s returned NaN score", c.scorer.ModelVersion())
	}
	if score < 0 || score > 1 {
		c.logger.Warn("Clamping out of range score",
			zap.Float64("score", score),
			zap.String("model", c.scorer.ModelVersion()))
		score = math.Min(1, math.Max(0, score))
	}

	if c.cacheEnabled {
		now := time.Now()
		entry := &ScoreCacheEntry{
			Key:          key,
			ModelVersion: c.scorer.ModelVersion(),
			Score:        score,
			LastSeen:     now,
		}
		if c.cacheTTL > 0 {
			entry.ExpiresAt = now.Add(c.cacheTTL)
		}
		if err := c.cache.Set(ctx, entry); err != nil {
			c.logger.Error("Failed to update score cache", zap.Error(err))
		}
	}

	return score, nil
}

// Classify scores text and applies the fixed threshold
func (c *Classifier) Classify(ctx context.Context, text string) (float64, Label, error) {
	score, err := c.Score(ctx, text)
	if err != nil {
		return 0, LabelBenign, err
	}
	return score, LabelFor(score), nil
}

func scoreCacheKey(modelVersion, text string) string {
	sum := sha256.Sum256([]byte(text))
	return modelVersion + ":" + hex.EncodeToString(sum[:])
}
