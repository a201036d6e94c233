package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shineum/mailtrap-relay/internal/parser"
	"github.com/shineum/mailtrap-relay/internal/transport"
)

const categoryHeader = "X-Mailtrap-Category"

func runSend(cmd *cobra.Command, args []string) error {
	category, err := cmd.Flags().GetString("category")
	if err != nil {
		return err
	}

	_, t, _, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	return sendFile(cmd.Context(), t, args[0], category, cmd.OutOrStdout())
}

// sendFile parses the message at path, optionally tags it with category and
// sends it through t, reporting the result to out.
func sendFile(ctx context.Context, t transport.Transport, path, category string, out io.Writer) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}

	msg, err := parser.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}
	if category != "" {
		msg.Header.Set(categoryHeader, category)
	}

	n, err := t.Send(ctx, msg)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "sent via %s to %d recipient(s)\n", t.Name(), n)
	if id := transport.MessageID(msg); id != "" {
		fmt.Fprintf(out, "message id: %s\n", id)
	}
	return nil
}
