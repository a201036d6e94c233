package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shineum/mailtrap-relay/internal/smtp"
	smtptls "github.com/shineum/mailtrap-relay/internal/tls"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, t, logger, err := setup(ctx)
	if err != nil {
		return err
	}

	tlsConfig, tlsMode, err := smtptls.Load(cfg.TLS, cfg.SMTP.Domain)
	if err != nil {
		return err
	}

	logger.Info("starting mailtrap-relay",
		"version", version,
		"listen", cfg.SMTP.Listen,
		"transport", t.Name(),
		"auth_enabled", cfg.AuthEnabled(),
		"tls_mode", tlsMode,
	)

	server := smtp.New(cfg.SMTP, t, tlsConfig, logger)
	if err := server.ListenAndServe(ctx); err != nil {
		return err
	}

	logger.Info("mailtrap-relay stopped")
	return nil
}
