package relay

import "errors"

// tooBusyError signals stream-admission rejection for 429 mapping.
type tooBusyError struct{ kind Kind }

func (e tooBusyError) Error() string {
	return "too many concurrent " + string(e.kind) + " operations"
}

// StatusCode implements the HTTP layer's status-mapping interface.
func (e tooBusyError) StatusCode() int { return 429 }

// IsTooBusy reports whether err indicates stream-admission backpressure.
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}
