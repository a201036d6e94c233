// Package smtp runs the SMTP front end of the relay on top of go-smtp and
// hands every accepted message to a transport.
package smtp

import (
	"crypto/subtle"
	"errors"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

var (
	errAuthFailed = &smtp.SMTPError{
		Code:         535,
		EnhancedCode: smtp.EnhancedCode{5, 7, 8},
		Message:      "Authentication failed",
	}
	errAuthMechanism = &smtp.SMTPError{
		Code:         504,
		EnhancedCode: smtp.EnhancedCode{5, 7, 4},
		Message:      "Unsupported authentication mechanism",
	}
)

// Authenticator checks SMTP AUTH credentials against a single configured
// account.
type Authenticator struct {
	username string
	password string
}

// NewAuthenticator creates an Authenticator with the given credentials.
// If either is empty, authentication is disabled.
func NewAuthenticator(username, password string) *Authenticator {
	return &Authenticator{username: username, password: password}
}

// Enabled returns true if authentication credentials are configured.
func (a *Authenticator) Enabled() bool {
	return a.username != "" && a.password != ""
}

// Mechanisms returns the SASL mechanisms to advertise.
func (a *Authenticator) Mechanisms() []string {
	if !a.Enabled() {
		return nil
	}
	return []string{sasl.Plain}
}

// Verify checks a PLAIN exchange. A non-empty identity must match the
// username; the relay does not support acting on behalf of another user.
func (a *Authenticator) Verify(identity, username, password string) error {
	if !a.Enabled() {
		return errors.New("authentication is not configured")
	}
	if identity != "" && identity != username {
		return errAuthFailed
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return errAuthFailed
	}
	return nil
}

// server returns a SASL server for mech that calls onSuccess after a
// successful exchange.
func (a *Authenticator) server(mech string, onSuccess func(username string)) (sasl.Server, error) {
	if mech != sasl.Plain || !a.Enabled() {
		return nil, errAuthMechanism
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if err := a.Verify(identity, username, password); err != nil {
			return err
		}
		onSuccess(username)
		return nil
	}), nil
}
