package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mailtrap-relay/internal/message"
)

func rawMessage(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func TestParse_PlainText(t *testing.T) {
	t.Parallel()

	msg, err := Parse(rawMessage(
		"From: Sender <sender@example.com>",
		"To: recipient@example.com",
		"Subject: Test Subject",
		"Message-Id: <test123@example.com>",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Hello, this is a plain text email.",
	))
	require.NoError(t, err)

	assert.Equal(t, []message.Address{{Email: "sender@example.com", Name: "Sender"}}, msg.From)
	assert.Equal(t, []message.Address{{Email: "recipient@example.com"}}, msg.To)
	assert.Equal(t, "Test Subject", msg.Subject)
	assert.Equal(t, "text/plain", msg.ContentType)
	assert.Equal(t, "Hello, this is a plain text email.", string(msg.Body))
	assert.Empty(t, msg.Parts)
	assert.Equal(t, "<test123@example.com>", msg.Header.Get("Message-ID"))
}

func TestParse_HTMLSinglePart(t *testing.T) {
	t.Parallel()

	msg, err := Parse(rawMessage(
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: HTML",
		"Content-Type: text/html",
		"",
		"<h1>Hello</h1>",
	))
	require.NoError(t, err)

	assert.Equal(t, "text/html", msg.ContentType)
	assert.Equal(t, "<h1>Hello</h1>", string(msg.Body))
	assert.False(t, msg.Multipart())
}

func TestParse_NoContentTypeDefaultsToPlain(t *testing.T) {
	t.Parallel()

	msg, err := Parse(rawMessage(
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: Bare",
		"",
		"just text",
	))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", msg.ContentType)
}

func TestParse_MultipartAlternative(t *testing.T) {
	t.Parallel()

	msg, err := Parse(rawMessage(
		"From: sender@example.com",
		"To: alice@example.com, Bob <bob@example.com>",
		"Cc: carol@example.com",
		"Subject: Multipart Test",
		"Content-Type: multipart/alternative; boundary=boundary123",
		"",
		"--boundary123",
		"Content-Type: text/plain",
		"",
		"Plain text body",
		"--boundary123",
		"Content-Type: text/html",
		"",
		"<p>HTML body</p>",
		"--boundary123--",
	))
	require.NoError(t, err)

	assert.Equal(t, "multipart/alternative", msg.ContentType)
	assert.Empty(t, msg.Body)
	assert.Equal(t, []message.Address{
		{Email: "alice@example.com"},
		{Email: "bob@example.com", Name: "Bob"},
	}, msg.To)
	assert.Equal(t, []message.Address{{Email: "carol@example.com"}}, msg.Cc)

	require.Len(t, msg.Parts, 2)
	assert.Equal(t, "text/plain", msg.Parts[0].ContentType)
	assert.Equal(t, "Plain text body", string(msg.Parts[0].Body))
	assert.Equal(t, "text/html", msg.Parts[1].ContentType)
	assert.Equal(t, "<p>HTML body</p>", string(msg.Parts[1].Body))
}

func TestParse_AttachmentKeepsDisposition(t *testing.T) {
	t.Parallel()

	msg, err := Parse(rawMessage(
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: With Attachment",
		"Content-Type: multipart/mixed; boundary=mixedboundary",
		"",
		"--mixedboundary",
		"Content-Type: text/plain",
		"",
		"Email body text",
		"--mixedboundary",
		`Content-Type: application/pdf; name="report.pdf"`,
		"Content-Disposition: attachment; filename=report.pdf",
		"Content-Transfer-Encoding: base64",
		"",
		"SGVsbG8g",
		"V29ybGQ=",
		"--mixedboundary--",
	))
	require.NoError(t, err)

	require.Len(t, msg.Parts, 2)
	att := msg.Parts[1]
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, "Hello World", string(att.Body))
	assert.Equal(t, "attachment; filename=report.pdf", att.Header.Get("Content-Disposition"))
}

func TestParse_NestedMultipartIsFlattened(t *testing.T) {
	t.Parallel()

	msg, err := Parse(rawMessage(
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: Nested",
		"Content-Type: multipart/mixed; boundary=outer",
		"",
		"--outer",
		"Content-Type: multipart/alternative; boundary=inner",
		"",
		"--inner",
		"Content-Type: text/plain",
		"",
		"text",
		"--inner",
		"Content-Type: text/html",
		"",
		"<b>html</b>",
		"--inner--",
		"--outer",
		"Content-Type: image/png",
		"Content-Disposition: attachment; filename=logo.png",
		"",
		"PNGDATA",
		"--outer--",
	))
	require.NoError(t, err)

	require.Len(t, msg.Parts, 3)
	assert.Equal(t, "text/plain", msg.Parts[0].ContentType)
	assert.Equal(t, "text/html", msg.Parts[1].ContentType)
	assert.Equal(t, "image/png", msg.Parts[2].ContentType)
	assert.Equal(t, "PNGDATA", string(msg.Parts[2].Body))
}

func TestParse_QuotedPrintablePart(t *testing.T) {
	t.Parallel()

	msg, err := Parse(rawMessage(
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: QP",
		"Content-Type: multipart/alternative; boundary=b",
		"",
		"--b",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"caf=C3=A9",
		"--b--",
	))
	require.NoError(t, err)

	require.Len(t, msg.Parts, 1)
	assert.Equal(t, "café", string(msg.Parts[0].Body))
}

func TestParse_EncodedSubject(t *testing.T) {
	t.Parallel()

	msg, err := Parse(rawMessage(
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: =?UTF-8?B?SGVsbG8gV29ybGQ=?=",
		"",
		"body",
	))
	require.NoError(t, err)
	assert.Equal(t, "Hello World", msg.Subject)
}

func TestParse_CustomHeadersPreserved(t *testing.T) {
	t.Parallel()

	msg, err := Parse(rawMessage(
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: Category",
		"x-mailtrap-category: welcome",
		"",
		"body",
	))
	require.NoError(t, err)
	assert.True(t, msg.Header.Has("X-Mailtrap-Category"))
	assert.Equal(t, "welcome", msg.Header.Get("X-Mailtrap-Category"))
}

func TestParse_MissingBoundary(t *testing.T) {
	t.Parallel()

	_, err := Parse(rawMessage(
		"From: sender@example.com",
		"Subject: Broken",
		"Content-Type: multipart/mixed",
		"",
		"body",
	))
	require.ErrorIs(t, err, ErrMissingBoundary)
}

func TestParse_InvalidMessage(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("not a header line without colon\r\n"))
	require.Error(t, err)
}

func TestParseAddressList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []message.Address
	}{
		{name: "empty", raw: "", want: nil},
		{name: "single", raw: "a@example.com", want: []message.Address{{Email: "a@example.com"}}},
		{
			name: "named",
			raw:  `"Alice A" <alice@example.com>, bob@example.com`,
			want: []message.Address{{Email: "alice@example.com", Name: "Alice A"}, {Email: "bob@example.com"}},
		},
		{
			name: "unparseable falls back to split",
			raw:  "not an address, also@bad@",
			want: []message.Address{{Email: "not an address"}, {Email: "also@bad@"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseAddressList(tt.raw))
		})
	}
}
