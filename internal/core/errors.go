package core

import (
	"errors"
)

// Scan failure taxonomy. Adapters join these with the underlying cause so that
// both errors.Is(err, ErrX) and inspection of the cause keep working.
var (
	// ErrNotConnected means the principal has no stored credential
	ErrNotConnected = errors.New("mailbox not connected")
	// ErrRefreshFailed means the token endpoint rejected or could not be reached
	ErrRefreshFailed = errors.New("credential refresh failed")
	// ErrFetchUnavailable means listing or reading messages failed transiently
	ErrFetchUnavailable = errors.New("mail provider unavailable")
	// ErrAuthExpired means the provider rejected the access token
	ErrAuthExpired = errors.New("mail provider rejected access token")
	// ErrClassifierUnavailable means no scoring model is loaded
	ErrClassifierUnavailable = errors.New("classifier not ready")
	// ErrAlert means a notification could not be sent
	ErrAlert = errors.New("alert delivery failed")
	// ErrPersistence means a store write failed
	ErrPersistence = errors.New("persistence failed")
)

// Store lookup misses
var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrPrincipalNotFound  = errors.New("principal not found")
)

// UserMessage maps a scan error to text a user can act on
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotConnected):
		return "Gmail not connected. Please connect Gmail first"
	case errors.Is(err, ErrRefreshFailed), errors.Is(err, ErrAuthExpired):
		return "Gmail access expired or was revoked. Please reconnect Gmail"
	case errors.Is(err, ErrFetchUnavailable):
		return "Gmail is unavailable right now. Please try again later"
	case errors.Is(err, ErrClassifierUnavailable):
		return "ML model not loaded. Service not ready"
	case errors.Is(err, ErrPersistence):
		return "Could not save results. Please try again later"
	default:
		return "Internal error"
	}
}
