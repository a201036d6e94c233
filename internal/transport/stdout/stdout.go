// Package stdout implements a Transport that prints messages instead of
// delivering them. It is meant for local development.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/shineum/mailtrap-relay/internal/config"
	"github.com/shineum/mailtrap-relay/internal/message"
	"github.com/shineum/mailtrap-relay/internal/transport"
)

// MessageIDHeader receives the generated message ID.
const MessageIDHeader = "X-Relay-Message-ID"

const rule = "========================================\n"

func init() {
	transport.Register("stdout", func(context.Context, *config.Config) (transport.Transport, error) {
		return New(), nil
	})
}

// Transport prints messages to a writer in a human-readable block.
type Transport struct {
	mu     sync.Mutex
	writer io.Writer
}

// New creates a Transport writing to os.Stdout.
func New() *Transport {
	return &Transport{writer: os.Stdout}
}

// NewWithWriter creates a Transport writing to w.
func NewWithWriter(w io.Writer) *Transport {
	return &Transport{writer: w}
}

// Send prints msg and stamps it with a generated message ID.
func (t *Transport) Send(_ context.Context, msg *message.Message) (int, error) {
	content := msg.Flatten()
	id := "relay-" + uuid.NewString()

	var b strings.Builder
	b.WriteString(rule)
	fmt.Fprintf(&b, "Message-ID: %s\n", id)
	fmt.Fprintf(&b, "From: %s\n", joinAddresses(msg.From))
	fmt.Fprintf(&b, "To: %s\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(&b, "Bcc: %s\n", joinAddresses(msg.Bcc))
	}
	if category := msg.Header.Get("X-Mailtrap-Category"); category != "" {
		fmt.Fprintf(&b, "Category: %s\n", category)
	}
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	b.WriteString("Body:\n")

	body := content.Text
	if body == "" {
		body = content.HTML
	}
	b.WriteString(body + "\n")

	if len(content.Attachments) > 0 {
		names := make([]string, 0, len(content.Attachments))
		for _, att := range content.Attachments {
			names = append(names, fmt.Sprintf("%s (%s)", att.Filename, formatSize(len(att.Content))))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(names, ", "))
	}
	b.WriteString(rule)

	t.mu.Lock()
	_, err := io.WriteString(t.writer, b.String())
	t.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("stdout: write failed: %w", err)
	}

	if msg.Header == nil {
		msg.Header = make(message.Header)
	}
	msg.Header.Add(MessageIDHeader, id)
	return msg.RecipientCount(), nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "stdout"
}

func joinAddresses(list []message.Address) string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		if a.Name != "" {
			out = append(out, fmt.Sprintf("%s <%s>", a.Name, a.Email))
			continue
		}
		out = append(out, a.Email)
	}
	return strings.Join(out, ", ")
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
