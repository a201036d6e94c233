package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shineum/mailtrap-relay/internal/message"
)

// Hook observes sends performed by a Transport.
type Hook interface {
	// BeforeSend runs before the transport builds its request. A non-nil
	// error aborts the send.
	BeforeSend(ctx context.Context, msg *message.Message) error

	// AfterSend runs once the transport has succeeded and written any
	// provider headers onto msg.
	AfterSend(ctx context.Context, msg *message.Message)
}

// WithHooks wraps t so that every Send runs the hooks around it, in order.
// With no hooks, t is returned unchanged.
func WithHooks(t Transport, hooks ...Hook) Transport {
	if len(hooks) == 0 {
		return t
	}
	return &hooked{next: t, hooks: hooks}
}

type hooked struct {
	next  Transport
	hooks []Hook
}

func (h *hooked) Send(ctx context.Context, msg *message.Message) (int, error) {
	for _, hook := range h.hooks {
		if err := hook.BeforeSend(ctx, msg); err != nil {
			return 0, fmt.Errorf("send aborted: %w", err)
		}
	}

	n, err := h.next.Send(ctx, msg)
	if err != nil {
		return n, err
	}

	for _, hook := range h.hooks {
		hook.AfterSend(ctx, msg)
	}
	return n, nil
}

func (h *hooked) Name() string {
	return h.next.Name()
}

// Unwrap returns the decorated transport.
func (h *hooked) Unwrap() Transport {
	return h.next
}

// MessageIDHeaders lists the headers transports use to report the
// provider-assigned message ID.
var MessageIDHeaders = []string{
	"X-Mailtrap-Message-ID",
	"X-Ses-Message-ID",
	"X-Resend-Message-ID",
	"X-Relay-Message-ID",
}

// MessageID returns the first provider message ID written onto msg, if any.
func MessageID(msg *message.Message) string {
	for _, key := range MessageIDHeaders {
		if v := msg.Header.Get(key); v != "" {
			return v
		}
	}
	return ""
}

// LogHook logs the start and completion of every send.
type LogHook struct {
	Logger *slog.Logger
}

// NewLogHook returns a LogHook writing to logger, or slog.Default() if nil.
func NewLogHook(logger *slog.Logger) *LogHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHook{Logger: logger}
}

// BeforeSend implements Hook.
func (l *LogHook) BeforeSend(ctx context.Context, msg *message.Message) error {
	l.Logger.DebugContext(ctx, "sending message",
		"subject", msg.Subject,
		"recipients", msg.RecipientCount(),
		"parts", len(msg.Parts),
	)
	return nil
}

// AfterSend implements Hook.
func (l *LogHook) AfterSend(ctx context.Context, msg *message.Message) {
	l.Logger.InfoContext(ctx, "message sent",
		"subject", msg.Subject,
		"recipients", msg.RecipientCount(),
		"message_id", MessageID(msg),
	)
}
