package progress

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// Event is the normalized display form of one Record.
type Event struct {
	// Label is the human-readable status line.
	Label string
	// Percent is only meaningful for downloading events (0..100).
	Percent int
	// Downloading marks events that must always re-render, even when the
	// label shape repeats.
	Downloading bool
	// Terminal marks the final event of a stream.
	Terminal bool
	// OK is valid when Terminal is true.
	OK bool
}

// Project maps a Record to its Event. Status matching is case-sensitive.
// A status=error record returns ErrOperation carrying the record's message;
// the zero Event is returned alongside it.
func Project(rec Record) (Event, error) {
	switch rec.Status {
	case StatusDownloading:
		pct := percent(rec.Completed, rec.Total)
		return Event{
			Label: fmt.Sprintf("Downloading: %d%% (%s / %s)",
				pct, humanBytes(rec.Completed), humanBytes(rec.Total)),
			Percent:     pct,
			Downloading: true,
		}, nil
	case StatusVerifying, StatusVerifyingDigest:
		return Event{Label: "Verifying checksum..."}, nil
	case StatusWritingManifest:
		return Event{Label: "Finalizing update..."}, nil
	case StatusSuccess:
		return Event{Label: "Pull completed successfully", Percent: 100, Terminal: true, OK: true}, nil
	case StatusError:
		return Event{Terminal: true}, ErrOperation(rec.Error)
	default:
		// Daemon-defined phases (e.g. "pulling manifest") pass through.
		return Event{Label: rec.Status}, nil
	}
}

// percent computes a clamped download percentage. Zero or negative totals
// yield 0 rather than dividing by zero.
func percent(completed, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(completed) / float64(total) * 100))
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}

func humanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
