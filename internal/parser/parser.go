// Package parser turns raw RFC 5322 messages into message.Message values,
// keeping the primary body and the ordered list of MIME leaf parts.
package parser

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/shineum/mailtrap-relay/internal/message"
)

// ErrMissingBoundary is returned for a multipart body without a boundary parameter.
var ErrMissingBoundary = errors.New("multipart message missing boundary")

// maxDepth bounds multipart nesting.
const maxDepth = 8

var wordDecoder = &mime.WordDecoder{}

// Parse parses a raw message.
//
// Single-part messages keep their body and media type at the top level.
// Multipart messages keep the multipart media type at the top level with an
// empty body; nested multiparts are flattened into Parts in document order.
func Parse(raw []byte) (*message.Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	result := message.New()
	for key, values := range msg.Header {
		result.Header[textproto.CanonicalMIMEHeaderKey(key)] = append([]string(nil), values...)
	}

	result.Subject = decodeWords(msg.Header.Get("Subject"))
	result.From = parseAddressList(msg.Header.Get("From"))
	result.To = parseAddressList(msg.Header.Get("To"))
	result.Cc = parseAddressList(msg.Header.Get("Cc"))
	result.Bcc = parseAddressList(msg.Header.Get("Bcc"))

	mediaType, params := mediaTypeOf(msg.Header.Get("Content-Type"))

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, ErrMissingBoundary
		}
		result.ContentType = mediaType
		if err := parseMultipart(msg.Body, boundary, result, 0); err != nil {
			return nil, fmt.Errorf("failed to parse multipart message: %w", err)
		}
		return result, nil
	}

	body, err := readBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	result.ContentType = mediaType
	result.Body = body

	return result, nil
}

// parseMultipart appends every leaf part under body to result.Parts.
func parseMultipart(body io.Reader, boundary string, result *message.Message, depth int) error {
	if depth >= maxDepth {
		return fmt.Errorf("multipart nesting deeper than %d", maxDepth)
	}

	reader := multipart.NewReader(body, boundary)
	for {
		// NextRawPart keeps Content-Transfer-Encoding visible; NextPart would
		// decode quoted-printable and drop the header.
		part, err := reader.NextRawPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		mediaType, params := mediaTypeOf(part.Header.Get("Content-Type"))

		if strings.HasPrefix(mediaType, "multipart/") {
			nested := params["boundary"]
			if nested == "" {
				slog.Warn("nested multipart missing boundary, skipping")
				continue
			}
			if err := parseMultipart(part, nested, result, depth+1); err != nil {
				return err
			}
			continue
		}

		content, err := readBody(part, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			slog.Warn("failed to read part content, skipping",
				"content_type", mediaType,
				"error", err,
			)
			continue
		}

		header := make(message.Header, len(part.Header))
		for key, values := range part.Header {
			header[key] = append([]string(nil), values...)
		}

		result.Parts = append(result.Parts, message.Part{
			ContentType: mediaType,
			Body:        content,
			Header:      header,
		})
	}
}

// mediaTypeOf returns the lower-cased bare media type. A missing or
// unparseable Content-Type is treated as text/plain.
func mediaTypeOf(contentType string) (string, map[string]string) {
	if contentType == "" {
		return "text/plain", nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		slog.Warn("failed to parse content type, treating as plain text",
			"content_type", contentType,
			"error", err,
		)
		return "text/plain", nil
	}
	return mediaType, params
}

// readBody reads r and undoes the given Content-Transfer-Encoding.
// 7bit, 8bit, binary and unknown encodings are returned as-is.
func readBody(r io.Reader, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		cleaned := strings.Map(func(r rune) rune {
			if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, string(raw))
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
			if err != nil {
				return nil, fmt.Errorf("failed to decode base64 content: %w", err)
			}
		}
		return decoded, nil
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(r))
	default:
		return io.ReadAll(r)
	}
}

// decodeWords decodes RFC 2047 encoded-words, returning s unchanged when it
// cannot be decoded.
func decodeWords(s string) string {
	decoded, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// parseAddressList splits a header value into addresses, keeping display
// names. Unparseable lists fall back to a plain comma split.
func parseAddressList(raw string) []message.Address {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parser := mail.AddressParser{WordDecoder: wordDecoder}
	addresses, err := parser.ParseList(raw)
	if err != nil {
		parts := strings.Split(raw, ",")
		result := make([]message.Address, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, message.Address{Email: trimmed})
			}
		}
		return result
	}

	result := make([]message.Address, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, message.Address{Email: addr.Address, Name: addr.Name})
	}
	return result
}
