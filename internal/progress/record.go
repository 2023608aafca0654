// Package progress turns a model daemon's NDJSON pull/update stream into
// normalized display events: one shared projector for every surface that
// renders progress, instead of per-consumer reimplementations.
package progress

// Record is one parsed JSON object from a pull/update stream.
//
// Status carries daemon-defined phase strings; only a handful have special
// display treatment, the rest pass through verbatim. Completed and Total are
// byte counts and are not guaranteed consistent by the upstream (Completed
// may exceed Total; display clamps at 100%).
type Record struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Model     string `json:"model,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Well-known status values.
const (
	StatusDownloading     = "downloading"
	StatusVerifying       = "verifying"
	StatusVerifyingDigest = "verifying digest"
	StatusWritingManifest = "writing manifest"
	StatusSuccess         = "success"
	StatusError           = "error"
)

// Terminal reports whether the record ends the stream from the consumer's
// point of view.
func (r Record) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusError
}
