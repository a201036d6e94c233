// Package message defines the composed email model that transports consume.
package message

import "strings"

// Address is a single mailbox. An empty Name means the address has no
// display name.
type Address struct {
	Email string
	Name  string
}

// Message is a composed email ready to be handed to a transport.
//
// ContentType is the bare media type of the primary body (no parameters).
// For messages parsed from a multipart MIME body, ContentType holds the
// multipart type, Body is empty and Parts carries the leaf parts in order.
type Message struct {
	From    []Address
	To      []Address
	Cc      []Address
	Bcc     []Address
	Subject string

	ContentType string
	Body        []byte
	Parts       []Part

	Header Header
}

// Part is a child MIME part of a message.
type Part struct {
	ContentType string
	Body        []byte
	Header      Header
}

// New returns an empty message with an initialised header collection.
func New() *Message {
	return &Message{Header: make(Header)}
}

// RecipientCount returns the number of addressed recipients across
// To, Cc and Bcc.
func (m *Message) RecipientCount() int {
	return len(m.To) + len(m.Cc) + len(m.Bcc)
}

// Multipart reports whether the message has child parts.
func (m *Message) Multipart() bool {
	return len(m.Parts) > 0
}

// HasRecipient reports whether addr appears in To, Cc or Bcc.
// Addresses are compared case-insensitively, as relays treat them.
func (m *Message) HasRecipient(addr string) bool {
	for _, list := range [][]Address{m.To, m.Cc, m.Bcc} {
		for _, a := range list {
			if strings.EqualFold(a.Email, addr) {
				return true
			}
		}
	}
	return false
}
