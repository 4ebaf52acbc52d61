package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		from    string
		subject string
		text    string
	}{
		{
			name: "single part",
			raw: `From: Bank <alerts@bank.example>
Subject: Verify your account
Content-Type: text/plain; charset=utf-8

Please verify your password.
`,
			from:    "alerts@bank.example",
			subject: "Verify your account",
			text:    "Please verify your password.",
		},
		{
			name: "multipart alternative prefers plain",
			raw: `From: a@example.com
Subject: Hi
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

plain body
--b1
Content-Type: text/html; charset=utf-8

<p>html body</p>
--b1--
`,
			from:    "a@example.com",
			subject: "Hi",
			text:    "plain body",
		},
		{
			name: "nested multipart with attachment",
			raw: `From: a@example.com
Subject: Invoice
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

see attached invoice
--inner--
--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="invoice.pdf"

JVBERi0xLjQK
--outer--
`,
			from:    "a@example.com",
			subject: "Invoice",
			text:    "see attached invoice",
		},
		{
			name: "html only",
			raw: `From: a@example.com
Subject: Promo
Content-Type: text/html; charset=utf-8

<b>click here</b>
`,
			from:    "a@example.com",
			subject: "Promo",
			text:    "<b>click here</b>",
		},
		{
			name: "latin1 charset decoded",
			raw: "From: a@example.com\nSubject: Caf\xe9\nContent-Type: text/plain; charset=iso-8859-1\n\nr\xe9sum\xe9\n",
			from: "a@example.com",
			text: "résumé",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Parse(strings.NewReader(crlf(tc.raw)))
			require.NoError(t, err)
			assert.Equal(t, tc.from, msg.From)
			if tc.subject != "" {
				assert.Equal(t, tc.subject, msg.Subject)
			}
			assert.Equal(t, tc.text, msg.Text)
		})
	}
}

func TestParse_NoText(t *testing.T) {
	raw := crlf(`From: a@example.com
Subject: Scan
Content-Type: image/png

iVBORw0KGgo=
`)
	msg, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, noTextPlaceholder, msg.Text)
}
