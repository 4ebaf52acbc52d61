package gmail

import (
	"context"
	"strings"

	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
)

const (
	noSubject     = "(no subject)"
	unknownSender = "(unknown)"
)

// ListRecent implements core.MailFetcher. It lists at most maxCount ids and
// reads the metadata of each, keeping the provider's order.
func (c *Client) ListRecent(ctx context.Context, cred *core.OAuthCredential, query string, maxCount int) ([]core.MailMessageSummary, error) {
	svc, err := c.newSvc(ctx, cred)
	if err != nil {
		return nil, err
	}

	var list *gmail.ListMessagesResponse
	err = c.call(ctx, c.policy, "messages.list", func() error {
		var err error
		list, err = svc.Users.Messages.List(gmailUserID).
			Q(query).
			MaxResults(int64(maxCount)).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	refs := list.Messages
	if len(refs) > maxCount {
		refs = refs[:maxCount]
	}

	out := make([]core.MailMessageSummary, 0, len(refs))
	for _, ref := range refs {
		var msg *gmail.Message
		err := c.call(ctx, c.policy, "messages.get", func() error {
			var err error
			msg, err = svc.Users.Messages.Get(gmailUserID, ref.Id).
				Format("metadata").
				MetadataHeaders("From", "Subject").
				Context(ctx).
				Do()
			return err
		})
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(msg))
	}

	c.logger.Debug("Listed Gmail messages",
		zap.String("principal_id", cred.PrincipalID),
		zap.Int("count", len(out)))
	return out, nil
}

func summarize(msg *gmail.Message) core.MailMessageSummary {
	s := core.MailMessageSummary{
		ID:      msg.Id,
		Subject: noSubject,
		Sender:  unknownSender,
		Snippet: msg.Snippet,
	}
	if msg.Payload == nil {
		return s
	}
	for _, h := range msg.Payload.Headers {
		switch {
		case strings.EqualFold(h.Name, "Subject") && h.Value != "":
			s.Subject = h.Value
		case strings.EqualFold(h.Name, "From") && h.Value != "":
			s.Sender = h.Value
		}
	}
	return s
}
