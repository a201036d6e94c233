package mailtrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shineum/mailtrap-relay/internal/transport"
)

var (
	// ErrMissingToken is returned when no API token is configured.
	ErrMissingToken = errors.New("mailtrap: api token is required")

	// ErrNoSender is returned for a message without a From address.
	ErrNoSender = fmt.Errorf("%w: mailtrap: message has no from address", transport.ErrRejected)

	// ErrMissingFilename is returned when an attachment part has no
	// Content-Disposition header or the header has no filename= marker.
	ErrMissingFilename = fmt.Errorf("%w: mailtrap: attachment has no filename in content-disposition", transport.ErrRejected)

	errInvalidJSON = errors.New("response body is not valid JSON")
)

// APIError is a non-2xx response from the Send API.
type APIError struct {
	StatusCode int
	Errors     []string
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("mailtrap: send api returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("mailtrap: send api returned HTTP %d: %s", e.StatusCode, strings.Join(e.Errors, "; "))
}
