// Package smtp delivers alerts over SMTP, authenticating with the
// principal's OAuth access token.
package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Sender implements core.AlertSender over SMTP with STARTTLS and OAUTHBEARER
type Sender struct {
	address    string
	requireTLS bool
	tlsConfig  *tls.Config
	logger     *zap.Logger
}

// NewSender creates an SMTP sender for host:port. With requireTLS the
// connection is refused unless the server offers STARTTLS.
func NewSender(address string, requireTLS bool, tlsConfig *tls.Config, logger *zap.Logger) *Sender {
	return &Sender{
		address:    address,
		requireTLS: requireTLS,
		tlsConfig:  tlsConfig,
		logger:     logger,
	}
}

// SendRaw implements core.AlertSender
func (s *Sender) SendRaw(ctx context.Context, cred *core.OAuthCredential, from string, to []string, message []byte) error {
	host, portStr, err := net.SplitHostPort(s.address)
	if err != nil {
		return fmt.Errorf("invalid SMTP address %q: %w", s.address, err)
	}
	port, _ := strconv.Atoi(portStr)

	deadline := time.Now().Add(defaultTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if ok, _ := c.Extension("STARTTLS"); ok {
		cfg := s.tlsConfig
		if cfg == nil {
			cfg = &tls.Config{ServerName: host}
		}
		if err := c.StartTLS(cfg); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	} else if s.requireTLS {
		return fmt.Errorf("SMTP server %s does not offer STARTTLS", s.address)
	}

	auth := sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
		Username: from,
		Token:    cred.AccessToken,
		Host:     host,
		Port:     port,
	})
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("OAUTHBEARER authentication failed: %w", err)
	}

	if err := c.Mail(from, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, recipient := range to {
		if err := c.Rcpt(recipient, nil); err != nil {
			return fmt.Errorf("RCPT TO %s failed: %w", recipient, err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := io.Copy(wc, bytes.NewReader(message)); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// the message has already been accepted
		s.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}
