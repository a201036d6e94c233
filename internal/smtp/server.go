package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-smtp"

	"github.com/shineum/mailtrap-relay/internal/config"
	"github.com/shineum/mailtrap-relay/internal/transport"
)

// shutdownTimeout bounds how long in-flight sessions get to finish.
const shutdownTimeout = 30 * time.Second

// Backend implements smtp.Backend, creating one Session per connection.
type Backend struct {
	ctx       context.Context
	auth      *Authenticator
	transport transport.Transport
	logger    *slog.Logger
}

// NewSession implements smtp.Backend.
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return newSession(b.ctx, b, c.Conn().RemoteAddr().String()), nil
}

// Server is the relay's SMTP listener.
type Server struct {
	smtp    *smtp.Server
	backend *Backend
	logger  *slog.Logger
}

// New creates a Server that sends every accepted message through t.
// tlsConfig may be nil, in which case STARTTLS is not offered.
func New(cfg config.SMTPConfig, t transport.Transport, tlsConfig *tls.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	backend := &Backend{
		ctx:       context.Background(),
		auth:      NewAuthenticator(cfg.Username, cfg.Password),
		transport: t,
		logger:    logger,
	}

	srv := smtp.NewServer(backend)
	srv.Addr = cfg.Listen
	srv.Domain = cfg.Domain
	srv.MaxMessageBytes = cfg.MaxMessageSize
	srv.MaxRecipients = cfg.MaxRecipients
	srv.ReadTimeout = cfg.ReadTimeout
	srv.WriteTimeout = cfg.WriteTimeout
	srv.AllowInsecureAuth = cfg.AllowInsecureAuth
	srv.TLSConfig = tlsConfig

	return &Server{smtp: srv, backend: backend, logger: logger}
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.smtp.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.smtp.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then stops
// accepting and waits up to 30 seconds for open sessions to end.
// Cancelling ctx also cancels sends that are in flight.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.backend.ctx = ctx

	s.logger.Info("SMTP server listening",
		"addr", ln.Addr().String(),
		"transport", s.backend.transport.Name(),
		"auth_enabled", s.backend.auth.Enabled(),
		"tls_enabled", s.smtp.TLSConfig != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.smtp.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, smtp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down SMTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.smtp.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("shutdown timeout reached, forcing close", "error", err)
		_ = s.smtp.Close()
	}
	<-errCh
	return nil
}
