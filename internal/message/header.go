package message

import "net/textproto"

// Header is a case-insensitive header collection keyed by canonical MIME
// header names.
type Header map[string][]string

// Has reports whether key is present, even with an empty value.
func (h Header) Has(key string) bool {
	_, ok := h[textproto.CanonicalMIMEHeaderKey(key)]
	return ok
}

// Get returns the first value for key, or "" if absent.
func (h Header) Get(key string) string {
	return textproto.MIMEHeader(h).Get(key)
}

// Add appends value to key.
func (h Header) Add(key, value string) {
	textproto.MIMEHeader(h).Add(key, value)
}

// Set replaces any existing values of key.
func (h Header) Set(key, value string) {
	textproto.MIMEHeader(h).Set(key, value)
}

// Del removes key.
func (h Header) Del(key string) {
	textproto.MIMEHeader(h).Del(key)
}

// Clone returns a deep copy of h.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}
