package httpapi

import (
	"log"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"modelhub/internal/ndjson"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("MODELHUB_LOG_LEVEL"))

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// echoWriter tees relayed response bytes into the shared line
// demultiplexer and logs each complete NDJSON record. Used at debug level
// to watch progress streams server-side.
type echoWriter struct {
	http.ResponseWriter
	lines *ndjson.LineWriter
}

func newEchoWriter(w http.ResponseWriter, kind string) *echoWriter {
	return &echoWriter{
		ResponseWriter: w,
		lines: ndjson.NewLineWriter(func(line string) {
			if zlog != nil {
				zlog.Debug().Str("kind", kind).Msg("relay> " + line)
				return
			}
			log.Printf("relay %s> %s", kind, line)
		}),
	}
}

func (ew *echoWriter) Write(p []byte) (int, error) {
	n, err := ew.ResponseWriter.Write(p)
	if n > 0 {
		_, _ = ew.lines.Write(p[:n])
	}
	return n, err
}

// Flush forwards to the wrapped writer so the relay keeps its backpressure
// behavior when the echo is active.
func (ew *echoWriter) Flush() {
	if f, ok := ew.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
