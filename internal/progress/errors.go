package progress

import "errors"

// opError carries the upstream's error message for a failed operation.
// Unlike per-line parse failures, which are skipped, an explicit error
// record always terminates the stream and surfaces to the user.
type opError struct{ msg string }

func (e opError) Error() string { return e.msg }

// ErrOperation wraps the message from a status=error record. An empty
// message gets a generic fallback so the user never sees a blank error.
func ErrOperation(msg string) error {
	if msg == "" {
		msg = "operation failed"
	}
	return opError{msg: msg}
}

// IsOperationError reports whether err originated from a status=error
// record in the stream.
func IsOperationError(err error) bool {
	var oe opError
	return errors.As(err, &oe)
}
