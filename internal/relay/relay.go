// Package relay forwards a model daemon's chunked NDJSON pull/update stream
// to the downstream HTTP response as bytes arrive, without ever buffering
// the body. It owns the streaming-side error policy: buffered JSON errors
// before the first forwarded byte, connection abort after.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"modelhub/internal/ndjson"
	"modelhub/internal/progress"
)

// Kind is the streaming operation being relayed.
type Kind string

const (
	KindPull   Kind = "pull"
	KindUpdate Kind = "update"
)

// Streamer opens the upstream streaming call. Satisfied by *upstream.Client.
type Streamer interface {
	PullStream(ctx context.Context, model string) (*http.Response, error)
	BaseURL() string
}

// copyBufSize is the relay read-buffer size. Chunks are forwarded and
// flushed as read, so this bounds latency, not memory growth.
const copyBufSize = 32 << 10

// Relay streams pull/update operations with a global admission cap.
// Unbounded concurrent relays would let a browser exhaust sockets and
// upstream bandwidth; admission is non-blocking and rejections map to 429.
type Relay struct {
	sem *semaphore.Weighted
	log zerolog.Logger
}

// New returns a Relay allowing at most maxStreams concurrent operations.
func New(maxStreams int64, log zerolog.Logger) *Relay {
	if maxStreams <= 0 {
		maxStreams = 8
	}
	return &Relay{
		sem: semaphore.NewWeighted(maxStreams),
		log: log,
	}
}

// Stream relays one pull/update operation to w.
//
// Errors returned before any byte is forwarded are the caller's to render
// as a buffered JSON error; chunked framing has not started in that case.
// Once bytes have been forwarded, Stream never returns an error: a later
// upstream failure aborts the connection (http.ErrAbortHandler) so the
// downstream consumer observes truncation instead of a clean stream end.
//
// ctx must combine the request context with the server base context so a
// client disconnect or shutdown cancels the upstream transfer.
func (rl *Relay) Stream(ctx context.Context, w http.ResponseWriter, src Streamer, kind Kind, model string) error {
	if !rl.sem.TryAcquire(1) {
		return tooBusyError{kind: kind}
	}
	defer rl.sem.Release(1)

	opID := uuid.NewString()
	log := rl.log.With().
		Str("op", opID).
		Str("kind", string(kind)).
		Str("model", model).
		Str("endpoint", src.BaseURL()).
		Logger()

	resp, err := src.PullStream(ctx, model)
	if err != nil {
		log.Error().Err(err).Msg("upstream stream open failed")
		streamsTotal.WithLabelValues(string(kind), "open_failed").Inc()
		return err
	}
	defer resp.Body.Close()

	activeStreams.WithLabelValues(string(kind)).Inc()
	defer activeStreams.WithLabelValues(string(kind)).Dec()
	log.Info().Msg("stream started")

	flush := func() {}
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}

	// Watch forwarded lines through the shared demultiplexer so the relay
	// knows whether the upstream already emitted a terminal record.
	var terminalSeen, errSeen bool
	var upstreamErr string
	watcher := ndjson.NewLineWriter(func(line string) {
		var rec progress.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Debug().Str("line", line).Msg("unparseable record relayed")
			return
		}
		if !rec.Terminal() {
			return
		}
		terminalSeen = true
		if rec.Status == progress.StatusError {
			errSeen = true
			upstreamErr = rec.Error
		}
	})

	var headersSent bool
	var bytesSent int64
	buf := make([]byte, copyBufSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if !headersSent {
				writeStreamHeaders(w)
				headersSent = true
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Downstream went away; the joined context aborts upstream.
				log.Info().Err(werr).Int64("bytes", bytesSent).Msg("downstream write failed")
				streamsTotal.WithLabelValues(string(kind), "client_gone").Inc()
				return nil
			}
			flush()
			bytesSent += int64(n)
			relayedBytes.WithLabelValues(string(kind)).Add(float64(n))
			_, _ = watcher.Write(buf[:n])
		}
		if rerr == nil {
			continue
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if ctx.Err() != nil {
			log.Info().Int64("bytes", bytesSent).Msg("stream canceled")
			streamsTotal.WithLabelValues(string(kind), "canceled").Inc()
			return nil
		}
		if bytesSent == 0 {
			log.Error().Err(rerr).Msg("upstream failed before any bytes were forwarded")
			streamsTotal.WithLabelValues(string(kind), "failed").Inc()
			return rerr
		}
		// Mid-stream failure after bytes were sent: the status line is
		// gone, so a clean end would lie to the consumer. Abort the
		// connection and let its stream-end handling detect truncation.
		log.Error().Err(rerr).Int64("bytes", bytesSent).Msg("upstream failed mid-stream, aborting response")
		streamsTotal.WithLabelValues(string(kind), "aborted").Inc()
		panic(http.ErrAbortHandler)
	}

	// Recover a final record the upstream left without a trailing newline.
	_ = watcher.Close()

	if !headersSent {
		writeStreamHeaders(w)
	}
	if !terminalSeen {
		rec, _ := json.Marshal(progress.Record{Status: progress.StatusSuccess, Model: model})
		if _, werr := w.Write(append(rec, '\n')); werr == nil {
			flush()
		}
	}

	result := "success"
	if errSeen {
		// The error record was forwarded verbatim; the consumer surfaces
		// it. Log it here so failures are visible server-side too.
		log.Error().Str("error", upstreamErr).Msg("upstream reported operation error")
		result = "upstream_error"
	}
	streamsTotal.WithLabelValues(string(kind), result).Inc()
	log.Info().Int64("bytes", bytesSent).Msg("stream finished")
	return nil
}

// writeStreamHeaders starts the chunked NDJSON response. The payload is a
// line stream, not one JSON document, hence the octet-stream content type.
func writeStreamHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Connection", "keep-alive")
	h.Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
}
