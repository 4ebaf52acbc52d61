package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

// AlertSubject is the fixed subject line of every alert
const AlertSubject = "PhishGuard Alert - Suspicious email detected"

const alertBodyTemplate = `PhishGuard detected a suspicious email in your inbox.

Sender: %s
Subject: %s
Snippet: %s
Score: %.4f

Please review this message in your inbox.
`

// AlertDispatcher sends phishing notifications to the principal's own mailbox
type AlertDispatcher struct {
	credentials CredentialProvider
	sender      AlertSender
	logger      *zap.Logger
	timeout     time.Duration
	now         func() time.Time
}

// NewAlertDispatcher creates a new alert dispatcher
func NewAlertDispatcher(
	credentials CredentialProvider,
	sender AlertSender,
	logger *zap.Logger,
	timeout time.Duration,
) *AlertDispatcher {
	return &AlertDispatcher{
		credentials: credentials,
		sender:      sender,
		logger:      logger,
		timeout:     timeout,
		now:         time.Now,
	}
}

// Send delivers one alert. Every failure is reported as ErrAlert.
func (d *AlertDispatcher) Send(ctx context.Context, principal *Principal, subject, sender, snippet string, score float64) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	cred, err := d.credentials.GetValidCredential(ctx, principal.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAlert, err)
	}

	raw, err := ComposeAlert(principal.Email, subject, sender, snippet, score, d.now())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAlert, err)
	}

	if err := d.sender.SendRaw(ctx, cred, principal.Email, []string{principal.Email}, raw); err != nil {
		return fmt.Errorf("%w: %w", ErrAlert, err)
	}

	d.logger.Debug("Sent phishing alert",
		zap.String("principal_id", principal.ID),
		zap.String("sender", sender),
		zap.Float64("score", score))
	return nil
}

// ComposeAlert renders the alert as a text/plain RFC 5322 message addressed
// from and to the principal
func ComposeAlert(principalEmail, subject, sender, snippet string, score float64, date time.Time) ([]byte, error) {
	addr := []*mail.Address{{Address: principalEmail}}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", addr)
	h.SetAddressList("To", addr)
	h.SetSubject(AlertSubject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert writer: %w", err)
	}
	if _, err := io.WriteString(w, fmt.Sprintf(alertBodyTemplate, sender, subject, snippet, score)); err != nil {
		return nil, fmt.Errorf("failed to write alert body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close alert writer: %w", err)
	}
	return buf.Bytes(), nil
}
