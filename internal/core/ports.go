package core

import (
	"context"
)

// CredentialStore persists one OAuth credential per principal
type CredentialStore interface {
	// GetCredential returns ErrCredentialNotFound when nothing is stored
	GetCredential(ctx context.Context, principalID string) (*OAuthCredential, error)

	// PutCredential replaces the stored credential in full
	PutCredential(ctx context.Context, cred *OAuthCredential) error
}

// TokenRefresher exchanges a refresh token at the credential's token endpoint
type TokenRefresher interface {
	Refresh(ctx context.Context, cred *OAuthCredential) (*TokenGrant, error)
}

// MailFetcher lists recent messages from the mail provider
type MailFetcher interface {
	// ListRecent returns at most maxCount summaries in provider order.
	// It fails with ErrAuthExpired or ErrFetchUnavailable.
	ListRecent(ctx context.Context, cred *OAuthCredential, query string, maxCount int) ([]MailMessageSummary, error)
}

// Scorer is a pretrained model returning a phishing probability for a text
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)

	// ModelVersion identifies the artifact so that scores are reproducible
	ModelVersion() string
}

// ScoreCache memoises scores per model version and text
type ScoreCache interface {
	// Get returns an error when no live entry exists
	Get(ctx context.Context, key string) (*ScoreCacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *ScoreCacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// ResultStore persists scan results and answers aggregate queries
type ResultStore interface {
	Save(ctx context.Context, result *ScanResult) error

	CountByLabel(ctx context.Context, principalID string, label Label) (int, error)

	// Latest returns at most limit results, most recent first
	Latest(ctx context.Context, principalID string, limit int) ([]ScanResult, error)
}

// PrincipalStore resolves principals by id
type PrincipalStore interface {
	// GetPrincipal returns ErrPrincipalNotFound for unknown ids
	GetPrincipal(ctx context.Context, id string) (*Principal, error)

	PutPrincipal(ctx context.Context, principal *Principal) error
}

// AlertSender delivers an already composed RFC 5322 message on behalf of a principal
type AlertSender interface {
	SendRaw(ctx context.Context, cred *OAuthCredential, from string, to []string, message []byte) error
}

// CredentialProvider hands out credentials that are valid right now
type CredentialProvider interface {
	GetValidCredential(ctx context.Context, principalID string) (*OAuthCredential, error)
	// RenewCredential refreshes a credential the mail provider rejected,
	// unless the stored one has already been replaced
	RenewCredential(ctx context.Context, principalID string, rejected *OAuthCredential) (*OAuthCredential, error)
}

// AlertNotifier tells a principal about one flagged message
type AlertNotifier interface {
	Send(ctx context.Context, principal *Principal, subject, sender, snippet string, score float64) error
}
