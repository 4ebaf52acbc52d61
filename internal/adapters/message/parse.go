// Package message extracts the scoring text from RFC 5322 messages.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// noTextPlaceholder stands in for messages without any text part
const noTextPlaceholder = "[No text content found in message]"

// Message is the part of a parsed message the classifier needs
type Message struct {
	From    string
	Subject string
	Text    string
}

// Parse reads a message and collects its text/plain parts. Nested multiparts
// are walked; attachments are skipped. HTML is used only when no plain text
// part exists.
func Parse(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	msg := &Message{}
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	}

	var plain, html bytes.Buffer
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if gomessage.IsUnknownCharset(err) {
				continue
			}
			// Keep what was read so far
			if plain.Len() > 0 || html.Len() > 0 {
				break
			}
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := inline.ContentType()
		if err != nil {
			contentType = "text/plain"
		}

		switch strings.ToLower(contentType) {
		case "text/plain":
			if _, err := io.Copy(&plain, part.Body); err != nil {
				continue
			}
			plain.WriteString("\n")
		case "text/html":
			if _, err := io.Copy(&html, part.Body); err != nil {
				continue
			}
			html.WriteString("\n")
		}
	}

	switch {
	case plain.Len() > 0:
		msg.Text = strings.TrimSpace(plain.String())
	case html.Len() > 0:
		msg.Text = strings.TrimSpace(html.String())
	default:
		msg.Text = noTextPlaceholder
	}
	return msg, nil
}
