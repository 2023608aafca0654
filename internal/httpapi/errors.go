package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"modelhub/pkg/types"
)

// HTTPError allows lower layers to provide an HTTP status code for an
// error. Relay admission rejections and upstream status errors implement it.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// errorStatus maps an operation error to its HTTP status: explicit codes
// win, anything else counts as a failed upstream hop. Unwraps so wrapped
// upstream status errors keep their code.
func errorStatus(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusBadGateway
}
