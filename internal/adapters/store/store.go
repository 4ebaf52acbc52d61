// Package store holds the persistence adapters for principals, credentials
// and scan results.
package store

import (
	"time"

	"github.com/phishguard/phishguard/internal/core"
)

// migration is one schema step. Steps are applied in order and recorded in schema_version.
type migration struct {
	version    int
	statements []string
}

// resultRow is the scan_results layout shared by the SQL backends
type resultRow struct {
	ID           string    `db:"id"`
	PrincipalID  string    `db:"principal_id"`
	MessageID    string    `db:"message_id"`
	Subject      string    `db:"subject"`
	Sender       string    `db:"sender"`
	Snippet      string    `db:"snippet"`
	Score        float64   `db:"score"`
	Label        int       `db:"label"`
	ModelVersion string    `db:"model_version"`
	CreatedAt    time.Time `db:"created_at"`
}

func toResultRow(r *core.ScanResult) resultRow {
	return resultRow{
		ID:           r.ID,
		PrincipalID:  r.PrincipalID,
		MessageID:    r.MessageID,
		Subject:      r.Subject,
		Sender:       r.Sender,
		Snippet:      r.Snippet,
		Score:        r.Score,
		Label:        int(r.Label),
		ModelVersion: r.ModelVersion,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func (r resultRow) result() core.ScanResult {
	return core.ScanResult{
		ID:           r.ID,
		PrincipalID:  r.PrincipalID,
		MessageID:    r.MessageID,
		Subject:      r.Subject,
		Sender:       r.Sender,
		Snippet:      r.Snippet,
		Score:        r.Score,
		Label:        core.Label(r.Label),
		ModelVersion: r.ModelVersion,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func toResults(rows []resultRow) []core.ScanResult {
	out := make([]core.ScanResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.result())
	}
	return out
}
