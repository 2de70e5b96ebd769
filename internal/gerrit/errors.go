package gerrit

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError carries the HTTP status and the plain-text message Gerrit
// returns for failed requests.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

func statusError(code int, message string) error {
	return &StatusError{Code: code, Message: message}
}

func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

// IsNotAuthorized reports whether err is a 401 or 403 from the server.
func IsNotAuthorized(err error) bool {
	code := statusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsConflict reports whether err is a 409 from the server, e.g. creating a
// username that already exists.
func IsConflict(err error) bool {
	return statusCode(err) == http.StatusConflict
}

// IsBadRequest reports whether err is a 400 or 422 from the server, e.g. a
// blocked username or an invalid SSH key.
func IsBadRequest(err error) bool {
	code := statusCode(err)
	return code == http.StatusBadRequest || code == http.StatusUnprocessableEntity
}
