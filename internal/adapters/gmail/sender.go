package gmail

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/phishguard/phishguard/internal/core"
	"google.golang.org/api/gmail/v1"
)

// SendRaw implements core.AlertSender. Gmail takes sender and recipients
// from the message headers. Sends are attempted once so that a timed out
// request that did go through is not delivered twice.
func (c *Client) SendRaw(ctx context.Context, cred *core.OAuthCredential, from string, to []string, message []byte) error {
	svc, err := c.newSvc(ctx, cred)
	if err != nil {
		return err
	}

	raw := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(message)}
	if _, err := svc.Users.Messages.Send(gmailUserID, raw).Context(ctx).Do(); err != nil {
		return fmt.Errorf("messages.send failed: %w", err)
	}
	return nil
}
