package assetapi

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("asset api: %s %s: status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("asset api: %s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 from the asset API.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

// maxErrorBody bounds how much of an error response is kept in StatusError.
const maxErrorBody = 256

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}

// DecodeError is returned when a 2xx body is not the expected JSON.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("asset api: decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
