package progress

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"modelhub/internal/ndjson"
)

// Consumer drives the shared line demultiplexer over a raw pull/update
// stream and yields de-duplicated display events. One Consumer per stream;
// not safe for concurrent use.
//
// Per-line JSON parse failures are logged and skipped. An explicit
// status=error record terminates consumption: the error is returned and
// every later Feed/Close call returns it again without processing input.
type Consumer struct {
	demux     ndjson.Demux
	log       zerolog.Logger
	lastLabel string
	err       error
}

// NewConsumer returns a Consumer logging skipped lines to log.
func NewConsumer(log zerolog.Logger) *Consumer {
	return &Consumer{log: log}
}

// Feed processes one chunk and returns the display events it produced.
func (c *Consumer) Feed(chunk []byte) ([]Event, error) {
	if c.err != nil {
		return nil, c.err
	}
	var events []Event
	for _, line := range c.demux.Feed(chunk) {
		ev, ok, err := c.consumeLine(line)
		if err != nil {
			c.err = err
			return events, err
		}
		if ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

// Close ends the stream. A trailing fragment without a newline is kept as a
// final record when it parses as JSON, otherwise dropped.
func (c *Consumer) Close() ([]Event, error) {
	if c.err != nil {
		return nil, c.err
	}
	line, ok := c.demux.Flush()
	if !ok {
		return nil, nil
	}
	ev, emitted, err := c.consumeLine(line)
	if err != nil {
		c.err = err
		return nil, err
	}
	if !emitted {
		return nil, nil
	}
	return []Event{ev}, nil
}

// consumeLine parses, projects, and de-duplicates a single line. The bool
// result reports whether an event should be rendered.
func (c *Consumer) consumeLine(line string) (Event, bool, error) {
	var rec Record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		c.log.Warn().Err(err).Str("line", line).Msg("skipping malformed progress record")
		return Event{}, false, nil
	}
	ev, err := Project(rec)
	if err != nil {
		return Event{}, false, err
	}
	// Suppress identical consecutive labels; downloading always re-renders
	// because the percentage moves even when the label shape repeats.
	if !ev.Downloading && ev.Label == c.lastLabel {
		return Event{}, false, nil
	}
	c.lastLabel = ev.Label
	return ev, true, nil
}
