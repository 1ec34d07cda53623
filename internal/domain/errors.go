package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionInvalid means a 401 could not be recovered by a token
	// refresh. The credential store has been cleared and the user must
	// re-authenticate.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrTradeInFlight means an execution request for the same opportunity
	// is still outstanding.
	ErrTradeInFlight = errors.New("trade already in flight")

	// ErrChannelClosed means the push channel was shut down explicitly.
	ErrChannelClosed = errors.New("channel closed")
)

// APIError is a non-2xx response from the backend other than the single
// recoverable 401 case. Message carries the server-supplied message from the
// response envelope when present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("api: HTTP %d: %s", e.Status, e.Message)
}

// AsAPIError unwraps err to an *APIError if one is in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
