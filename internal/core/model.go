package core

import (
	"time"
)

// Label is the binary phishing decision derived from a score
type Label int

const (
	LabelBenign   Label = 0
	LabelPhishing Label = 1
)

// Defaults applied to scan requests that leave fields empty
const (
	DefaultMaxMessages = 20
	DefaultQuery       = "in:inbox newer_than:7d"
)

// credentialExpiryDelta mirrors the early-expiry window used by golang.org/x/oauth2
const credentialExpiryDelta = 10 * time.Second

// Principal is the user on whose behalf scanning occurs
type Principal struct {
	ID    string
	Email string
}

// OAuthCredential is the delegated mailbox credential of a principal
type OAuthCredential struct {
	PrincipalID  string
	AccessToken  string
	RefreshToken string
	TokenType    string
	TokenURI     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// Expiry is zero when the provider did not report one.
	Expiry time.Time
}

// Expired reports whether the access token must be refreshed before use
func (c *OAuthCredential) Expired(now time.Time) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !now.Add(credentialExpiryDelta).Before(c.Expiry)
}

// Clone returns a deep copy so callers never share the scopes slice
func (c *OAuthCredential) Clone() *OAuthCredential {
	out := *c
	out.Scopes = append([]string(nil), c.Scopes...)
	return &out
}

// TokenGrant is what the token endpoint returns for a refresh
type TokenGrant struct {
	AccessToken string
	// RefreshToken is empty when the provider kept the previous one.
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

// MailMessageSummary is a fetched message reduced to what the classifier needs
type MailMessageSummary struct {
	ID      string
	Subject string
	Sender  string
	Snippet string
}

// ScanResult is the persisted classification of one fetched message
type ScanResult struct {
	ID           string    `json:"id"`
	PrincipalID  string    `json:"user_id"`
	MessageID    string    `json:"message_id"`
	Subject      string    `json:"subject"`
	Sender       string    `json:"sender"`
	Snippet      string    `json:"snippet"`
	Score        float64   `json:"score"`
	Label        Label     `json:"label"`
	ModelVersion string    `json:"model_version,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ScanRequest bounds the window of messages a scan looks at
type ScanRequest struct {
	MaxMessages int    `json:"max_messages"`
	Query       string `json:"query"`
}

// FailureStage names the per-message step that failed
type FailureStage string

const (
	StageClassify FailureStage = "classify"
	StagePersist  FailureStage = "persist"
)

// MessageFailure records a message the scan skipped
type MessageFailure struct {
	MessageID string
	Stage     FailureStage
	Err       error
}

// ScanOutcome aggregates one scan invocation
type ScanOutcome struct {
	Scanned      int
	Flagged      int
	Results      []ScanResult
	Failures     []MessageFailure
	AlertsSent   int
	AlertsFailed int
}

// Stats summarises every result stored for a principal
type Stats struct {
	TotalScanned  int `json:"total_scanned"`
	TotalPhishing int `json:"total_phishing"`
}

// ScoreCacheEntry memoises a score for a (model version, text) pair
type ScoreCacheEntry struct {
	Key          string
	ModelVersion string
	Score        float64
	LastSeen     time.Time
	// ExpiresAt is zero for entries that never expire.
	ExpiresAt time.Time
}
