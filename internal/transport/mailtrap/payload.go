package mailtrap

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/shineum/mailtrap-relay/internal/message"
)

// CategoryHeader carries the optional Mailtrap category on an outgoing message.
const CategoryHeader = "X-Mailtrap-Category"

// filenameMarker is the literal searched for in Content-Disposition.
const filenameMarker = "filename="

// Payload is a single Send API request: its headers and JSON body.
type Payload struct {
	Headers map[string]string
	Body    Request
}

// Request is the JSON body of POST /api/send.
//
// HTML, Text and Category are pointers so that a value that was set but is
// empty is still emitted, while an unset one is omitted.
type Request struct {
	From        Address      `json:"from"`
	To          []Address    `json:"to"`
	Cc          []Address    `json:"cc,omitempty"`
	Bcc         []Address    `json:"bcc,omitempty"`
	Subject     string       `json:"subject"`
	HTML        *string      `json:"html,omitempty"`
	Text        *string      `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Category    *string      `json:"category,omitempty"`
}

// Address is a Send API mailbox. Name is omitted when empty.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Attachment is a Send API attachment. Disposition is always "attachment".
type Attachment struct {
	Content     string `json:"content"`
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
}

// buildPayload maps msg to a Send API request. It only reads msg; stripping
// the category header is the caller's job (see Send).
func (t *Transport) buildPayload(msg *message.Message) (*Payload, error) {
	if len(msg.From) == 0 {
		return nil, ErrNoSender
	}

	req := Request{
		From:    convertAddress(msg.From[0]),
		To:      convertAddresses(msg.To),
		Subject: msg.Subject,
	}
	if len(msg.Cc) > 0 {
		req.Cc = convertAddresses(msg.Cc)
	}
	if len(msg.Bcc) > 0 {
		req.Bcc = convertAddresses(msg.Bcc)
	}

	seedBody(&req, msg.ContentType, msg.Body)

	if msg.Multipart() {
		for i, part := range msg.Parts {
			switch {
			case part.ContentType == "text/html" && req.HTML == nil:
				req.HTML = stringPtr(string(part.Body))
			case part.ContentType == "text/plain" && req.Text == nil:
				req.Text = stringPtr(string(part.Body))
			default:
				att, err := convertAttachment(part)
				if err != nil {
					return nil, fmt.Errorf("part %d: %w", i, err)
				}
				req.Attachments = append(req.Attachments, att)
			}
		}
	} else if req.HTML == nil && req.Text == nil {
		// A lone non-text body has nowhere to go: it is neither a body nor
		// an attachment in the Send API mapping.
		t.logger.Warn("dropping single-part body with non-text content type",
			"content_type", msg.ContentType,
			"size", len(msg.Body),
		)
	}

	if msg.Header.Has(CategoryHeader) {
		req.Category = stringPtr(msg.Header.Get(CategoryHeader))
	}

	return &Payload{
		Headers: map[string]string{"Api-Token": t.token},
		Body:    req,
	}, nil
}

// seedBody assigns the primary body to html or text by its content type.
func seedBody(req *Request, contentType string, body []byte) {
	switch contentType {
	case "text/html":
		req.HTML = stringPtr(string(body))
	case "text/plain":
		req.Text = stringPtr(string(body))
	}
}

func convertAttachment(part message.Part) (Attachment, error) {
	filename, err := dispositionFilename(part.Header)
	if err != nil {
		return Attachment{}, err
	}
	return Attachment{
		Content:     base64.StdEncoding.EncodeToString(part.Body),
		Type:        part.ContentType,
		Filename:    filename,
		Disposition: "attachment",
	}, nil
}

// dispositionFilename returns everything after the first "filename=" in the
// Content-Disposition header, verbatim. Quotes and RFC 2231 encodings are not
// interpreted.
func dispositionFilename(h message.Header) (string, error) {
	if !h.Has("Content-Disposition") {
		return "", fmt.Errorf("%w: no Content-Disposition header", ErrMissingFilename)
	}
	_, filename, found := strings.Cut(h.Get("Content-Disposition"), filenameMarker)
	if !found {
		return "", fmt.Errorf("%w: %q", ErrMissingFilename, h.Get("Content-Disposition"))
	}
	return filename, nil
}

func convertAddress(a message.Address) Address {
	return Address{Email: a.Email, Name: a.Name}
}

func convertAddresses(list []message.Address) []Address {
	out := make([]Address, 0, len(list))
	for _, a := range list {
		out = append(out, convertAddress(a))
	}
	return out
}

func stringPtr(s string) *string {
	return &s
}
