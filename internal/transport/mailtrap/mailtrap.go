// Package mailtrap implements a Transport that sends messages through the
// Mailtrap Send API.
package mailtrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/shineum/mailtrap-relay/internal/config"
	"github.com/shineum/mailtrap-relay/internal/message"
	"github.com/shineum/mailtrap-relay/internal/transport"
)

// DefaultEndpoint is the Send API host.
const DefaultEndpoint = "send.api.mailtrap.io"

// MessageIDHeader receives the first message ID returned by the API.
const MessageIDHeader = "X-Mailtrap-Message-ID"

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 1 << 20

func init() {
	transport.Register("mailtrap", func(_ context.Context, cfg *config.Config) (transport.Transport, error) {
		client, err := NewHTTPClient(cfg.Mailtrap.HTTP)
		if err != nil {
			return nil, err
		}
		opts := []Option{WithHTTPClient(client)}
		if cfg.Mailtrap.Endpoint != "" {
			opts = append(opts, WithEndpoint(cfg.Mailtrap.Endpoint))
		}
		return New(cfg.Mailtrap.Token, opts...)
	})
}

// Transport sends messages via POST https://{endpoint}/api/send.
//
// The setters are not synchronised; do not call them while a Send is in flight.
type Transport struct {
	client   *http.Client
	token    string
	endpoint string
	logger   *slog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithEndpoint overrides the API host.
func WithEndpoint(endpoint string) Option {
	return func(t *Transport) { t.endpoint = endpoint }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) { t.client = client }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// New creates a Transport authenticating with token.
func New(token string, opts ...Option) (*Transport, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	t := &Transport{
		token:    token,
		endpoint: DefaultEndpoint,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.client == nil {
		client, err := NewHTTPClient(config.HTTPConfig{})
		if err != nil {
			return nil, err
		}
		t.client = client
	}
	return t, nil
}

// SetClient replaces the HTTP client.
func (t *Transport) SetClient(client *http.Client) *Transport {
	t.client = client
	return t
}

// SetToken replaces the API token.
func (t *Transport) SetToken(token string) *Transport {
	t.token = token
	return t
}

// SetEndpoint replaces the API host.
func (t *Transport) SetEndpoint(endpoint string) *Transport {
	t.endpoint = endpoint
	return t
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "mailtrap"
}

// URL returns the Send API URL for the current endpoint.
func (t *Transport) URL() string {
	return "https://" + t.endpoint + "/api/send"
}

// errorResponse is the Send API error body.
type errorResponse struct {
	Errors []string `json:"errors"`
}

// Send delivers msg with a single API call and returns the number of
// recipients addressed.
//
// On success the first returned message ID is written to msg as
// X-Mailtrap-Message-ID; a response without IDs leaves the header unset.
// A present X-Mailtrap-Category header is moved into the payload and removed
// from msg. Nothing is retried.
func (t *Transport) Send(ctx context.Context, msg *message.Message) (int, error) {
	payload, err := t.buildPayload(msg)
	if err != nil {
		return 0, err
	}
	if payload.Body.Category != nil {
		msg.Header.Del(CategoryHeader)
	}

	bodyJSON, err := json.Marshal(payload.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL(), bytes.NewReader(bodyJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range payload.Headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("mailtrap: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, fmt.Errorf("mailtrap: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil {
			apiErr.Errors = errResp.Errors
		}
		return 0, apiErr
	}

	messageID, err := firstMessageID(body)
	if err != nil {
		return 0, fmt.Errorf("mailtrap: failed to decode response: %w", err)
	}

	if messageID != "" {
		if msg.Header == nil {
			msg.Header = make(message.Header)
		}
		msg.Header.Add(MessageIDHeader, messageID)
	}

	t.logger.Debug("mailtrap send accepted",
		"status", resp.StatusCode,
		"message_id", messageID,
	)

	return msg.RecipientCount(), nil
}

// firstMessageID returns message_ids[0] from a success body. Numbers keep
// their literal form. Any valid JSON without a usable first ID yields "".
func firstMessageID(body []byte) (string, error) {
	if !json.Valid(body) {
		return "", errInvalidJSON
	}

	var parsed any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return "", err
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		return "", nil
	}
	ids, ok := obj["message_ids"].([]any)
	if !ok || len(ids) == 0 {
		return "", nil
	}
	switch id := ids[0].(type) {
	case string:
		return id, nil
	case json.Number:
		return id.String(), nil
	default:
		return "", nil
	}
}
