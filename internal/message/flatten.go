package message

import (
	"mime"
	"strings"
)

// Content is a provider-neutral view of a message's bodies and attachments.
type Content struct {
	HTML        string
	Text        string
	Attachments []Attachment
}

// Attachment is a file carried by a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Flatten resolves the primary body and child parts into a single HTML body,
// a single text body and a list of attachments. The first text/html and
// text/plain seen win; everything else is an attachment. Unlike the Mailtrap
// payload rules this never fails: missing filenames are derived.
func (m *Message) Flatten() Content {
	var c Content
	var haveHTML, haveText bool

	take := func(contentType string, body []byte, h Header) {
		switch {
		case contentType == "text/html" && !haveHTML:
			c.HTML, haveHTML = string(body), true
		case contentType == "text/plain" && !haveText:
			c.Text, haveText = string(body), true
		default:
			c.Attachments = append(c.Attachments, Attachment{
				Filename:    filenameOf(contentType, h),
				ContentType: contentType,
				Content:     body,
			})
		}
	}

	primary := m.ContentType != "" && !strings.HasPrefix(m.ContentType, "multipart/")
	if primary && (len(m.Body) > 0 || !m.Multipart()) {
		take(m.ContentType, m.Body, m.Header)
	}
	for _, p := range m.Parts {
		take(p.ContentType, p.Body, p.Header)
	}
	return c
}

// filenameOf picks a filename from Content-Disposition, then the
// Content-Type name parameter, then falls back to attachment.<subtype>.
func filenameOf(contentType string, h Header) string {
	if _, params, err := mime.ParseMediaType(h.Get("Content-Disposition")); err == nil {
		if fn := params["filename"]; fn != "" {
			return fn
		}
	}
	if _, params, err := mime.ParseMediaType(h.Get("Content-Type")); err == nil {
		if name := params["name"]; name != "" {
			return name
		}
	}
	if _, sub, ok := strings.Cut(contentType, "/"); ok && sub != "" {
		return "attachment." + sub
	}
	return "attachment"
}
