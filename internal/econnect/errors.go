package econnect

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrValidation reports an invalid client configuration.
	ErrValidation = errors.New("econnect: client configuration is invalid")
	// ErrCredential reports a rejected username or password.
	ErrCredential = errors.New("econnect: username or password are not correct")
	// ErrMissingToken reports a call made before Authenticate.
	ErrMissingToken = errors.New("econnect: no token is present, authenticate first")
	// ErrInvalidToken reports a session that expired mid-operation.
	ErrInvalidToken = errors.New("econnect: used token is not valid, authenticate again")
	// ErrLock reports that the panel refused the lock, usually because
	// another client holds it. The caller may retry.
	ErrLock = errors.New("econnect: unable to obtain the panel lock")
	// ErrCode reports a wrong panel access code.
	ErrCode = errors.New("econnect: panel code is not correct")
	// ErrLockNotAcquired reports a lock-gated call without a held lock, or a
	// remote unlock that the server rejected.
	ErrLockNotAcquired = errors.New("econnect: panel lock not acquired")
	// ErrCommand reports a command rejected by the panel.
	ErrCommand = errors.New("econnect: command rejected by the panel")
	// ErrQueryNotValid reports an unknown query category.
	ErrQueryNotValid = errors.New("econnect: query not available")
	// ErrParse reports a response that does not match the expected shape.
	ErrParse = errors.New("econnect: unexpected response format")
	// ErrDeviceDisconnected reports a panel unreachable from the cloud.
	ErrDeviceDisconnected = errors.New("econnect: panel is not connected to the cloud")
)

// disconnectedMarker is the body the cloud returns (with a 403) when the
// panel is offline.
const disconnectedMarker = "Centrale non connessa"

// HTTPError is returned for any non-2xx response. It is passed through
// unchanged unless a more specific error applies.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("econnect: %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// statusCode returns the HTTP status carried by err, or 0.
func statusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

func isDisconnected(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) &&
		httpErr.StatusCode == http.StatusForbidden &&
		strings.Contains(httpErr.Body, disconnectedMarker)
}
