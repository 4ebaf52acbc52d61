package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScanService is the core service that scans a principal's mailbox for phishing
type ScanService struct {
	credentials      CredentialProvider
	fetcher          MailFetcher
	classifier       *Classifier
	results          ResultStore
	alerts           AlertNotifier
	logger           *zap.Logger
	fetchTimeout     time.Duration
	maxMessagesLimit int
	defaults         ScanRequest
	locks            *keyedLock
	newID            func() string
	now              func() time.Time
}

// NewScanService creates a new scan service
func NewScanService(
	credentials CredentialProvider,
	fetcher MailFetcher,
	classifier *Classifier,
	results ResultStore,
	alerts AlertNotifier,
	logger *zap.Logger,
	fetchTimeout time.Duration,
	maxMessagesLimit int,
	defaults ScanRequest,
) *ScanService {
	if defaults.MaxMessages <= 0 {
		defaults.MaxMessages = DefaultMaxMessages
	}
	if defaults.Query == "" {
		defaults.Query = DefaultQuery
	}
	return &ScanService{
		credentials:      credentials,
		fetcher:          fetcher,
		classifier:       classifier,
		results:          results,
		alerts:           alerts,
		logger:           logger,
		fetchTimeout:     fetchTimeout,
		maxMessagesLimit: maxMessagesLimit,
		defaults:         defaults,
		locks:            newKeyedLock(),
		newID:            func() string { return uuid.New().String() },
		now:              time.Now,
	}
}

// NormalizeRequest fills defaults and caps the message window
func (s *ScanService) NormalizeRequest(req ScanRequest) ScanRequest {
	if req.MaxMessages <= 0 {
		req.MaxMessages = s.defaults.MaxMessages
	}
	if s.maxMessagesLimit > 0 && req.MaxMessages > s.maxMessagesLimit {
		req.MaxMessages = s.maxMessagesLimit
	}
	if req.Query == "" {
		req.Query = s.defaults.Query
	}
	return req
}

// Scan fetches recent messages, classifies and stores every one of them, and
// alerts the principal for each message labelled phishing. Failures of a single
// message are recorded in the outcome and never stop the scan. When the scan is
// interrupted the partial outcome is returned together with the error.
func (s *ScanService) Scan(ctx context.Context, principal *Principal, req ScanRequest) (*ScanOutcome, error) {
	req = s.NormalizeRequest(req)
	logger := s.logger.With(zap.String("principal_id", principal.ID))

	unlock, err := s.locks.Lock(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cred, err := s.credentials.GetValidCredential(ctx, principal.ID)
	if err != nil {
		logger.Warn("Scan aborted: no usable credential", zap.Error(err))
		return nil, err
	}

	if err := s.classifier.Ready(); err != nil {
		logger.Error("Scan aborted: classifier not ready")
		return nil, err
	}

	messages, err := s.fetch(ctx, cred, req)
	if errors.Is(err, ErrAuthExpired) && cred.Expiry.IsZero() && cred.RefreshToken != "" {
		// Records without an expiry are only refreshed once Gmail rejects them
		logger.Info("Access token with unknown expiry was rejected, renewing")
		cred, err = s.credentials.RenewCredential(ctx, principal.ID, cred)
		if err != nil {
			logger.Warn("Scan aborted: renewal failed", zap.Error(err))
			return nil, err
		}
		messages, err = s.fetch(ctx, cred, req)
	}
	if err != nil {
		logger.Warn("Scan aborted: fetch failed", zap.Error(err))
		return nil, err
	}

	logger.Info("Fetched messages",
		zap.Int("count", len(messages)),
		zap.String("query", req.Query),
		zap.Int("max_messages", req.MaxMessages))

	outcome := &ScanOutcome{
		Results: make([]ScanResult, 0, len(messages)),
	}

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			logger.Warn("Scan interrupted", zap.Int("processed", outcome.Scanned), zap.Error(err))
			return outcome, err
		}
		outcome.Scanned++

		score, label, err := s.classifier.Classify(ctx, msg.Snippet)
		if err != nil {
			if errors.Is(err, ErrClassifierUnavailable) {
				logger.Error("Classifier became unavailable mid-scan", zap.Error(err))
				return outcome, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return outcome, ctxErr
			}
			logger.Error("Failed to classify message",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			outcome.Failures = append(outcome.Failures, MessageFailure{MessageID: msg.ID, Stage: StageClassify, Err: err})
			continue
		}

		result := ScanResult{
			ID:           s.newID(),
			PrincipalID:  principal.ID,
			MessageID:    msg.ID,
			Subject:      msg.Subject,
			Sender:       msg.Sender,
			Snippet:      msg.Snippet,
			Score:        score,
			Label:        label,
			ModelVersion: s.classifier.ModelVersion(),
			CreatedAt:    s.now().UTC(),
		}

		if err := s.results.Save(ctx, &result); err != nil {
			err = fmt.Errorf("%w: failed to save scan result: %w", ErrPersistence, err)
			logger.Error("Failed to persist scan result",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			outcome.Failures = append(outcome.Failures, MessageFailure{MessageID: msg.ID, Stage: StagePersist, Err: err})
			continue
		}
		outcome.Results = append(outcome.Results, result)

		if label != LabelPhishing {
			continue
		}
		outcome.Flagged++

		if err := s.alerts.Send(ctx, principal, msg.Subject, msg.Sender, msg.Snippet, score); err != nil {
			outcome.AlertsFailed++
			logger.Warn("Alert send failed",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		outcome.AlertsSent++
	}

	logger.Info("Scan completed",
		zap.Int("scanned", outcome.Scanned),
		zap.Int("flagged", outcome.Flagged),
		zap.Int("failures", len(outcome.Failures)),
		zap.Int("alerts_sent", outcome.AlertsSent),
		zap.Int("alerts_failed", outcome.AlertsFailed))

	return outcome, nil
}

func (s *ScanService) fetch(ctx context.Context, cred *OAuthCredential, req ScanRequest) ([]MailMessageSummary, error) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}
	return s.fetcher.ListRecent(ctx, cred, req.Query, req.MaxMessages)
}

// Stats counts every stored result of the principal
func (s *ScanService) Stats(ctx context.Context, principalID string) (*Stats, error) {
	benign, err := s.results.CountByLabel(ctx, principalID, LabelBenign)
	if err != nil {
		return nil, fmt.Errorf("failed to count benign results: %w", err)
	}
	phishing, err := s.results.CountByLabel(ctx, principalID, LabelPhishing)
	if err != nil {
		return nil, fmt.Errorf("failed to count phishing results: %w", err)
	}
	return &Stats{
		TotalScanned:  benign + phishing,
		TotalPhishing: phishing,
	}, nil
}

// Latest returns the principal's most recent results, newest first
func (s *ScanService) Latest(ctx context.Context, principalID string, limit int) ([]ScanResult, error) {
	if limit <= 0 {
		return []ScanResult{}, nil
	}
	results, err := s.results.Latest(ctx, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest results: %w", err)
	}
	return results, nil
}

// Predict scores a free text without storing anything
func (s *ScanService) Predict(ctx context.Context, text string) (float64, Label, error) {
	return s.classifier.Classify(ctx, text)
}

// ModelVersion names the scoring model, empty when none is loaded
func (s *ScanService) ModelVersion() string {
	return s.classifier.ModelVersion()
}
