// Package resend implements a Transport backed by the Resend API.
package resend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v3"

	"github.com/shineum/mailtrap-relay/internal/config"
	"github.com/shineum/mailtrap-relay/internal/message"
	"github.com/shineum/mailtrap-relay/internal/transport"
)

// MessageIDHeader receives the Resend email ID.
const MessageIDHeader = "X-Resend-Message-ID"

// categoryHeader is mapped onto a Resend tag.
const categoryHeader = "X-Mailtrap-Category"

// ErrMissingAPIKey is returned by New for an empty key.
var ErrMissingAPIKey = errors.New("resend: api key is required")

func init() {
	transport.Register("resend", func(_ context.Context, cfg *config.Config) (transport.Transport, error) {
		return New(cfg.Resend.APIKey, cfg.Resend.Sender)
	})
}

// EmailsAPI is the subset of the Resend client used by Transport.
type EmailsAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Transport sends messages through the Resend API.
type Transport struct {
	emails EmailsAPI
	sender string
}

// New creates a Transport. sender, when set, replaces the message From.
func New(apiKey, sender string) (*Transport, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return NewWithClient(resend.NewClient(apiKey).Emails, sender), nil
}

// NewWithClient creates a Transport around an existing emails client.
func NewWithClient(emails EmailsAPI, sender string) *Transport {
	return &Transport{emails: emails, sender: sender}
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "resend"
}

// Send delivers msg and writes the returned ID to msg.
func (t *Transport) Send(ctx context.Context, msg *message.Message) (int, error) {
	req, err := t.buildRequest(msg)
	if err != nil {
		return 0, err
	}

	sent, err := t.emails.SendWithContext(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("resend: failed to send email: %w", err)
	}

	if sent != nil && sent.Id != "" {
		if msg.Header == nil {
			msg.Header = make(message.Header)
		}
		msg.Header.Add(MessageIDHeader, sent.Id)
	}
	return msg.RecipientCount(), nil
}

func (t *Transport) buildRequest(msg *message.Message) (*resend.SendEmailRequest, error) {
	from := t.sender
	if from == "" {
		if len(msg.From) == 0 {
			return nil, fmt.Errorf("%w: resend: message has no from address and no sender is configured", transport.ErrRejected)
		}
		from = formatAddress(msg.From[0])
	}

	content := msg.Flatten()
	req := &resend.SendEmailRequest{
		From:    from,
		To:      formatAddresses(msg.To),
		Cc:      formatAddresses(msg.Cc),
		Bcc:     formatAddresses(msg.Bcc),
		Subject: msg.Subject,
		Html:    content.HTML,
		Text:    content.Text,
		ReplyTo: msg.Header.Get("Reply-To"),
	}

	if len(content.Attachments) > 0 {
		req.Attachments = convertAttachments(content.Attachments)
	}
	if category := msg.Header.Get(categoryHeader); category != "" {
		req.Tags = []resend.Tag{{Name: "category", Value: tagValue(category)}}
	}
	return req, nil
}

func convertAttachments(attachments []message.Attachment) []*resend.Attachment {
	result := make([]*resend.Attachment, len(attachments))
	for i, a := range attachments {
		result[i] = &resend.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.ContentType,
		}
	}
	return result
}

// tagValue restricts v to the characters Resend accepts in tag values.
func tagValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, v)
}

func formatAddress(a message.Address) string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

func formatAddresses(list []message.Address) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = formatAddress(a)
	}
	return out
}
