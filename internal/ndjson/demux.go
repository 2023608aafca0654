// Package ndjson reassembles newline-delimited JSON records from an
// arbitrarily chunked byte stream. It is the single line-splitting
// implementation shared by the relay (observing forwarded bytes) and the
// progress consumer (turning a pull stream into display events).
package ndjson

import "strings"

// Demux accumulates raw chunks and emits complete lines. The trailing
// fragment of the most recent chunk (no newline yet) is carried over to the
// next Feed. A Demux is owned by exactly one stream and is not safe for
// concurrent use.
type Demux struct {
	frag []byte
}

// Feed appends chunk to the carried fragment and returns every complete
// line found, in order. Blank and whitespace-only lines are dropped.
// The sequence of lines emitted across calls is invariant under how the
// underlying stream is partitioned into chunks.
func (d *Demux) Feed(chunk []byte) []string {
	d.frag = append(d.frag, chunk...)
	var lines []string
	start := 0
	for i := 0; i < len(d.frag); i++ {
		if d.frag[i] != '\n' {
			continue
		}
		line := string(d.frag[start:i])
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
		start = i + 1
	}
	// Keep only the unterminated tail.
	d.frag = append(d.frag[:0], d.frag[start:]...)
	return lines
}

// Flush returns the trailing unterminated fragment, if any, and resets the
// demux. Upstreams occasionally omit the final newline; callers decide
// whether the fragment is a usable record (it is kept when it parses as
// JSON) rather than dropping it unseen.
func (d *Demux) Flush() (string, bool) {
	line := strings.TrimSpace(string(d.frag))
	d.frag = d.frag[:0]
	if line == "" {
		return "", false
	}
	return line, true
}
