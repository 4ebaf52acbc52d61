package smtp

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type received struct {
	mu         sync.Mutex
	token      string
	username   string
	from       string
	recipients []string
	data       []byte
}

type testBackend struct {
	rec *received
}

func (b *testBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &testSession{rec: b.rec}, nil
}

type testSession struct {
	rec *received
}

func (s *testSession) AuthMechanisms() []string {
	return []string{sasl.OAuthBearer}
}

func (s *testSession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewOAuthBearerServer(func(opts sasl.OAuthBearerOptions) *sasl.OAuthBearerError {
		s.rec.mu.Lock()
		defer s.rec.mu.Unlock()
		if opts.Token != "good-token" {
			return &sasl.OAuthBearerError{Status: "invalid_token"}
		}
		s.rec.token = opts.Token
		s.rec.username = opts.Username
		return nil
	}), nil
}

func (s *testSession) Mail(from string, _ *smtp.MailOptions) error {
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	s.rec.from = from
	return nil
}

func (s *testSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	s.rec.recipients = append(s.rec.recipients, to)
	return nil
}

func (s *testSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	s.rec.data = data
	return nil
}

func (s *testSession) Reset() {}

func (s *testSession) Logout() error { return nil }

func startServer(t *testing.T) (string, *received) {
	t.Helper()
	rec := &received{}
	srv := smtp.NewServer(&testBackend{rec: rec})
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			t.Logf("SMTP server error: %v", err)
		}
	}()
	t.Cleanup(func() { _ = srv.Close() })
	return l.Addr().String(), rec
}

func TestSender_SendRaw(t *testing.T) {
	addr, rec := startServer(t)
	s := NewSender(addr, false, nil, zap.NewNop())

	msg, err := core.ComposeAlert("alice@example.com", "Verify", "bad@evil.test", "click", 0.9, time.Now())
	require.NoError(t, err)

	cred := &core.OAuthCredential{PrincipalID: "p1", AccessToken: "good-token"}
	require.NoError(t, s.SendRaw(context.Background(), cred, "alice@example.com", []string{"alice@example.com"}, msg))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "good-token", rec.token)
	assert.Equal(t, "alice@example.com", rec.username)
	assert.Equal(t, "alice@example.com", rec.from)
	assert.Equal(t, []string{"alice@example.com"}, rec.recipients)
	assert.Contains(t, string(rec.data), core.AlertSubject)
	assert.Contains(t, string(rec.data), "Score: 0.9000")
}

func TestSender_Failures(t *testing.T) {
	addr, _ := startServer(t)
	cred := &core.OAuthCredential{PrincipalID: "p1", AccessToken: "revoked"}

	t.Run("rejected token", func(t *testing.T) {
		s := NewSender(addr, false, nil, zap.NewNop())
		err := s.SendRaw(context.Background(), cred, "a@b.c", []string{"a@b.c"}, []byte("Subject: x\r\n\r\nx\r\n"))
		assert.ErrorContains(t, err, "OAUTHBEARER")
	})

	t.Run("tls required", func(t *testing.T) {
		s := NewSender(addr, true, nil, zap.NewNop())
		err := s.SendRaw(context.Background(), cred, "a@b.c", []string{"a@b.c"}, []byte("x"))
		assert.ErrorContains(t, err, "STARTTLS")
	})

	t.Run("bad address", func(t *testing.T) {
		s := NewSender("no-port", false, nil, zap.NewNop())
		assert.Error(t, s.SendRaw(context.Background(), cred, "a@b.c", nil, []byte("x")))
	})
}
