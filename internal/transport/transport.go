// Package transport defines the interface for outbound mail backends and the
// registry that builds them by name.
package transport

import (
	"context"
	"errors"

	"github.com/shineum/mailtrap-relay/internal/message"
)

// Transport is the interface that outbound mail backends must implement.
// Each transport turns a composed message into a provider-specific request
// (Mailtrap, SES, Graph, and so on) and performs it.
type Transport interface {
	// Send delivers msg and returns the number of recipients addressed.
	// A transport may write provider headers (such as a message ID) back
	// onto msg.
	Send(ctx context.Context, msg *message.Message) (int, error)

	// Name returns the registered name of this transport.
	Name() string
}

// ErrRejected marks errors for messages a transport can never deliver as
// composed. Retrying them does not help.
var ErrRejected = errors.New("message rejected")
