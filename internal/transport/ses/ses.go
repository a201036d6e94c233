// Package ses implements a Transport that sends messages via AWS SES v2.
package ses

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/mailtrap-relay/internal/config"
	"github.com/shineum/mailtrap-relay/internal/message"
	"github.com/shineum/mailtrap-relay/internal/transport"
)

// MessageIDHeader receives the SES message ID.
const MessageIDHeader = "X-Ses-Message-ID"

func init() {
	transport.Register("ses", func(ctx context.Context, cfg *config.Config) (transport.Transport, error) {
		return New(ctx, Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
		})
	})
}

// Config holds the configuration for creating a Transport.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
}

// SendEmailAPI is the subset of the SES v2 client used by Transport.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Transport sends messages via the AWS SES v2 API.
type Transport struct {
	sender string
	client SendEmailAPI
}

// New creates a Transport. Static credentials are used when both keys are
// set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(cfg.Sender, sesv2.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates a Transport around an existing client.
func NewWithClient(sender string, client SendEmailAPI) *Transport {
	return &Transport{sender: sender, client: client}
}

// Name returns the transport name.
func (s *Transport) Name() string {
	return "ses"
}

// Send delivers msg through SES. Messages with attachments go out as raw
// MIME; everything else uses the simple content form.
func (s *Transport) Send(ctx context.Context, msg *message.Message) (int, error) {
	from := s.fromAddress(msg)
	if from == "" {
		return 0, fmt.Errorf("%w: ses: message has no from address and no sender is configured", transport.ErrRejected)
	}

	content := msg.Flatten()

	var input *sesv2.SendEmailInput
	if len(content.Attachments) > 0 {
		raw, err := buildRawMessage(from, msg, content)
		if err != nil {
			return 0, fmt.Errorf("failed to build raw message: %w", err)
		}
		input = &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(from),
			Destination:      destination(msg),
			Content: &types.EmailContent{
				Raw: &types.RawMessage{Data: raw},
			},
		}
	} else {
		input = buildSimpleInput(from, msg, content)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("ses: send failed: %w", err)
	}

	if out != nil && out.MessageId != nil && *out.MessageId != "" {
		if msg.Header == nil {
			msg.Header = make(message.Header)
		}
		msg.Header.Add(MessageIDHeader, *out.MessageId)
	}

	return msg.RecipientCount(), nil
}

// fromAddress prefers the configured sender and falls back to the message's
// first From entry.
func (s *Transport) fromAddress(msg *message.Message) string {
	if s.sender != "" {
		return s.sender
	}
	if len(msg.From) == 0 {
		return ""
	}
	return formatAddress(msg.From[0])
}

func buildSimpleInput(from string, msg *message.Message, content message.Content) *sesv2.SendEmailInput {
	body := &types.Body{}
	if content.HTML != "" {
		body.Html = &types.Content{Data: aws.String(content.HTML), Charset: aws.String("UTF-8")}
	}
	if content.Text != "" {
		body.Text = &types.Content{Data: aws.String(content.Text), Charset: aws.String("UTF-8")}
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      destination(msg),
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
}

func destination(msg *message.Message) *types.Destination {
	return &types.Destination{
		ToAddresses:  formatAddresses(msg.To),
		CcAddresses:  formatAddresses(msg.Cc),
		BccAddresses: formatAddresses(msg.Bcc),
	}
}

// buildRawMessage renders a multipart/mixed MIME document. Bcc is carried by
// the destination only, never in headers.
func buildRawMessage(from string, msg *message.Message, content message.Content) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	if len(msg.To) > 0 {
		fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(formatAddresses(msg.To), ", "))
	}
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", strings.Join(formatAddresses(msg.Cc), ", "))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", msg.Subject))
	if id := msg.Header.Get("Message-ID"); id != "" {
		fmt.Fprintf(&buf, "Message-ID: %s\r\n", id)
	}
	buf.WriteString("MIME-Version: 1.0\r\n")

	writer := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	if content.HTML != "" || content.Text != "" {
		if err := writeBodies(writer, content); err != nil {
			return nil, err
		}
	}

	for _, att := range content.Attachments {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Type", att.ContentType)
		h.Set("Content-Transfer-Encoding", "base64")
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))

		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment part: %w", err)
		}
		if _, err := part.Write(wrapBase64(att.Content)); err != nil {
			return nil, fmt.Errorf("failed to write attachment: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf.Bytes(), nil
}

// writeBodies writes the text and HTML bodies as a nested
// multipart/alternative, or a single part when only one exists.
func writeBodies(writer *multipart.Writer, content message.Content) error {
	if content.HTML == "" || content.Text == "" {
		h := make(textproto.MIMEHeader)
		body := content.Text
		h.Set("Content-Type", "text/plain; charset=UTF-8")
		if content.HTML != "" {
			body = content.HTML
			h.Set("Content-Type", "text/html; charset=UTF-8")
		}
		part, err := writer.CreatePart(h)
		if err != nil {
			return fmt.Errorf("failed to create body part: %w", err)
		}
		_, err = part.Write([]byte(body))
		return err
	}

	var alt bytes.Buffer
	altWriter := multipart.NewWriter(&alt)
	for _, b := range []struct{ contentType, body string }{
		{"text/plain; charset=UTF-8", content.Text},
		{"text/html; charset=UTF-8", content.HTML},
	} {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Type", b.contentType)
		part, err := altWriter.CreatePart(h)
		if err != nil {
			return fmt.Errorf("failed to create alternative part: %w", err)
		}
		if _, err := part.Write([]byte(b.body)); err != nil {
			return err
		}
	}
	if err := altWriter.Close(); err != nil {
		return err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", "multipart/alternative; boundary="+altWriter.Boundary())
	part, err := writer.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create alternative container: %w", err)
	}
	_, err = part.Write(alt.Bytes())
	return err
}

// wrapBase64 encodes data as base64 with 76-character lines per RFC 2045.
func wrapBase64(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	var out bytes.Buffer
	for len(encoded) > 76 {
		out.WriteString(encoded[:76])
		out.WriteString("\r\n")
		encoded = encoded[76:]
	}
	out.WriteString(encoded)
	return out.Bytes()
}

func formatAddress(a message.Address) string {
	if a.Name == "" {
		return a.Email
	}
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

func formatAddresses(list []message.Address) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, formatAddress(a))
	}
	return out
}
