package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// StatusError carries a non-success upstream HTTP status and the daemon's
// error message. StatusCode lets the HTTP layer relay the upstream status
// instead of a blanket 500.
type StatusError struct {
	Status  int
	Message string
}

func (e StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// StatusCode implements the HTTP layer's status-mapping interface.
func (e StatusError) StatusCode() int { return e.Status }

// IsStatusError reports whether err is or wraps an upstream HTTP status
// error.
func IsStatusError(err error) bool {
	var se StatusError
	return errors.As(err, &se)
}

// statusErrorFromResponse drains resp.Body looking for the daemon's
// `{"error": ...}` payload. The body read is capped; a daemon error
// document is small and anything larger is noise.
func statusErrorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return StatusError{Status: resp.StatusCode, Message: payload.Error}
	}
	return StatusError{Status: resp.StatusCode}
}
