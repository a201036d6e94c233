// Package graph implements a Transport that sends messages via the Microsoft
// Graph API.
package graph

import (
	"encoding/base64"
	"net/mail"

	"github.com/shineum/mailtrap-relay/internal/message"
)

type sendMailRequest struct {
	Message         sendMailMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

type sendMailMessage struct {
	Subject       string            `json:"subject"`
	Body          messageBody       `json:"body"`
	ToRecipients  []recipient       `json:"toRecipients"`
	CcRecipients  []recipient       `json:"ccRecipients,omitempty"`
	BccRecipients []recipient       `json:"bccRecipients,omitempty"`
	ReplyTo       []recipient       `json:"replyTo,omitempty"`
	Attachments   []graphAttachment `json:"attachments,omitempty"`
}

type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
}

type graphErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// buildSendMailRequest converts msg into a sendMail request body. Graph takes
// a single body, so HTML wins over text when both exist.
func buildSendMailRequest(msg *message.Message) *sendMailRequest {
	content := msg.Flatten()

	body := messageBody{ContentType: "text", Content: content.Text}
	if content.HTML != "" {
		body = messageBody{ContentType: "html", Content: content.HTML}
	}

	var attachments []graphAttachment
	for _, att := range content.Attachments {
		attachments = append(attachments, graphAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         att.Filename,
			ContentType:  att.ContentType,
			ContentBytes: base64.StdEncoding.EncodeToString(att.Content),
		})
	}

	var replyTo []recipient
	if addr, err := mail.ParseAddress(msg.Header.Get("Reply-To")); err == nil {
		replyTo = []recipient{{EmailAddress: emailAddress{Address: addr.Address, Name: addr.Name}}}
	}

	to := recipients(msg.To)
	if to == nil {
		to = []recipient{}
	}

	return &sendMailRequest{
		Message: sendMailMessage{
			Subject:       msg.Subject,
			Body:          body,
			ToRecipients:  to,
			CcRecipients:  recipients(msg.Cc),
			BccRecipients: recipients(msg.Bcc),
			ReplyTo:       replyTo,
			Attachments:   attachments,
		},
		SaveToSentItems: true,
	}
}

func recipients(list []message.Address) []recipient {
	if len(list) == 0 {
		return nil
	}
	out := make([]recipient, 0, len(list))
	for _, a := range list {
		out = append(out, recipient{EmailAddress: emailAddress{Address: a.Email, Name: a.Name}})
	}
	return out
}
