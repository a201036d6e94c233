package smtp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/shineum/mailtrap-relay/internal/message"
	"github.com/shineum/mailtrap-relay/internal/parser"
	"github.com/shineum/mailtrap-relay/internal/transport"
)

var (
	errUnparsable = &smtp.SMTPError{
		Code:         554,
		EnhancedCode: smtp.EnhancedCode{5, 6, 0},
		Message:      "Message could not be parsed",
	}
	errAuthRequired = &smtp.SMTPError{
		Code:         530,
		EnhancedCode: smtp.EnhancedCode{5, 7, 0},
		Message:      "Authentication required",
	}
	errTransportFailed = &smtp.SMTPError{
		Code:         451,
		EnhancedCode: smtp.EnhancedCode{4, 3, 0},
		Message:      "Temporary failure, please try again later",
	}
)

// Session is one SMTP connection. go-smtp drives it from a single goroutine.
type Session struct {
	ctx       context.Context
	auth      *Authenticator
	transport transport.Transport
	logger    *slog.Logger

	authenticated bool
	from          string
	rcpts         []string
}

func newSession(ctx context.Context, b *Backend, remote string) *Session {
	return &Session{
		ctx:       ctx,
		auth:      b.auth,
		transport: b.transport,
		logger: b.logger.With(
			"session_id", uuid.NewString(),
			"remote_addr", remote,
		),
	}
}

// AuthMechanisms implements smtp.AuthSession.
func (s *Session) AuthMechanisms() []string {
	return s.auth.Mechanisms()
}

// Auth implements smtp.AuthSession.
func (s *Session) Auth(mech string) (sasl.Server, error) {
	return s.auth.server(mech, func(username string) {
		s.authenticated = true
		s.logger.Debug("client authenticated", "username", username)
	})
}

// Mail implements smtp.Session.
func (s *Session) Mail(from string, _ *smtp.MailOptions) error {
	if s.auth.Enabled() && !s.authenticated {
		return errAuthRequired
	}
	s.from = from
	s.rcpts = nil
	return nil
}

// Rcpt implements smtp.Session.
func (s *Session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.rcpts = append(s.rcpts, to)
	return nil
}

// Data parses the message, merges the envelope into it and sends it through
// the transport. The reply code tells the client whether a retry can help.
func (s *Session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	msg, err := parser.Parse(raw)
	if err != nil {
		s.logger.Warn("failed to parse message", "error", err, "size", len(raw))
		return errUnparsable
	}
	mergeEnvelope(msg, s.from, s.rcpts)

	start := time.Now()
	n, err := s.transport.Send(s.ctx, msg)
	if err != nil {
		if errors.Is(err, transport.ErrRejected) {
			s.logger.Warn("message rejected by transport",
				"transport", s.transport.Name(),
				"error", err,
			)
			return &smtp.SMTPError{
				Code:         554,
				EnhancedCode: smtp.EnhancedCode{5, 6, 1},
				Message:      err.Error(),
			}
		}
		s.logger.Error("transport send failed",
			"transport", s.transport.Name(),
			"error", err,
		)
		return errTransportFailed
	}

	s.logger.Info("message relayed",
		"transport", s.transport.Name(),
		"recipients", n,
		"message_id", transport.MessageID(msg),
		"duration", time.Since(start),
	)
	return nil
}

// Reset implements smtp.Session.
func (s *Session) Reset() {
	s.from = ""
	s.rcpts = nil
}

// Logout implements smtp.Session.
func (s *Session) Logout() error {
	return nil
}

// mergeEnvelope fills gaps in the headers from the SMTP envelope. The
// envelope sender stands in for a missing From, and envelope recipients not
// named in the headers are delivered as Bcc.
func mergeEnvelope(msg *message.Message, from string, rcpts []string) {
	if len(msg.From) == 0 && from != "" {
		msg.From = []message.Address{{Email: from}}
	}
	for _, rcpt := range rcpts {
		if !msg.HasRecipient(rcpt) {
			msg.Bcc = append(msg.Bcc, message.Address{Email: rcpt})
		}
	}
}
