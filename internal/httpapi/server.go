package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelhub/internal/relay"
	"modelhub/internal/upstream"
	"modelhub/pkg/types"
)

// NewMux wires the console's HTTP surface: the streaming pull/update
// relays, the buffered management endpoints, health probes, and metrics.
func NewMux(res *upstream.Resolver, rl *relay.Relay) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints. Streamed octet-stream bodies are not
	// in the compressible set, so relays stay uncompressed and flushable.
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	// Streaming operations.
	r.Post("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		var req types.PullRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		streamOperation(w, r, res, rl, relay.KindPull, req.Model)
	})

	r.Post("/api/update-model", func(w http.ResponseWriter, r *http.Request) {
		var req types.UpdateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		streamOperation(w, r, res, rl, relay.KindUpdate, req.ModelName)
	})

	// Buffered operations.
	r.Get("/api/models", func(w http.ResponseWriter, r *http.Request) {
		client, ok := resolveClient(w, r, res)
		if !ok {
			return
		}
		models, err := client.Tags(r.Context())
		if err != nil {
			writeJSONError(w, errorStatus(err), err.Error())
			return
		}
		writeRawList(w, "models", models)
	})

	r.Get("/api/ps", func(w http.ResponseWriter, r *http.Request) {
		client, ok := resolveClient(w, r, res)
		if !ok {
			return
		}
		models, err := client.Ps(r.Context())
		if err != nil {
			writeJSONError(w, errorStatus(err), err.Error())
			return
		}
		writeRawList(w, "models", models)
	})

	r.Post("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var req types.ShowRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Model) == "" {
			writeJSONError(w, http.StatusBadRequest, "model is required")
			return
		}
		client, ok := resolveClient(w, r, res)
		if !ok {
			return
		}
		raw, err := client.Show(r.Context(), req.Model)
		if err != nil {
			writeJSONError(w, errorStatus(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
	})

	r.Delete("/api/models", func(w http.ResponseWriter, r *http.Request) {
		client, models, ok := bulkRequest(w, r, res)
		if !ok {
			return
		}
		completed, failed := settleAll(r.Context(), models, client.Delete)
		resp := types.DeleteModelsResponse{
			Success: completed > 0 || len(failed) == 0,
			Deleted: completed,
			Failed:  failed,
		}
		writeBulk(w, resp.Success, len(failed), resp)
	})

	r.Post("/api/models/run", func(w http.ResponseWriter, r *http.Request) {
		client, models, ok := bulkRequest(w, r, res)
		if !ok {
			return
		}
		completed, failed := settleAll(r.Context(), models, func(ctx context.Context, m string) error {
			return client.Generate(ctx, m, runKeepAlive)
		})
		resp := types.BulkResult{Success: completed > 0 || len(failed) == 0, Completed: completed, Failed: failed}
		writeBulk(w, resp.Success, len(failed), resp)
	})

	r.Post("/api/models/stop", func(w http.ResponseWriter, r *http.Request) {
		client, models, ok := bulkRequest(w, r, res)
		if !ok {
			return
		}
		completed, failed := settleAll(r.Context(), models, func(ctx context.Context, m string) error {
			return client.Generate(ctx, m, "0")
		})
		resp := types.BulkResult{Success: completed > 0 || len(failed) == 0, Completed: completed, Failed: failed}
		writeBulk(w, resp.Success, len(failed), resp)
	})

	r.Post("/api/set-endpoint", func(w http.ResponseWriter, r *http.Request) {
		var req types.SetEndpointRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Endpoint) == "" {
			writeJSONError(w, http.StatusBadRequest, "endpoint is required")
			return
		}
		if err := res.SetDefault(req.Endpoint); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.SetEndpointResponse{Status: "ok", Endpoint: res.Default()})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		client, ok := resolveClient(w, r, res)
		if !ok {
			return
		}
		if client.IsRunning(r.Context()) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("upstream unreachable"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// streamOperation validates the target and hands the response over to the
// relay. Errors after streaming begins never reach here; the relay owns
// them.
func streamOperation(w http.ResponseWriter, r *http.Request, res *upstream.Resolver, rl *relay.Relay, kind relay.Kind, model string) {
	if strings.TrimSpace(model) == "" {
		writeJSONError(w, http.StatusBadRequest, "model is required")
		return
	}
	client, ok := resolveClient(w, r, res)
	if !ok {
		return
	}

	lvl := requestLogLevel(r)
	start := time.Now()
	if lvl >= LevelInfo {
		if zlog != nil {
			z := zlog.Info().Str("kind", string(kind)).Str("model", model)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("stream start")
		} else {
			log.Printf("stream start kind=%s model=%s", kind, model)
		}
	}

	var sink http.ResponseWriter = w
	if lvl >= LevelDebug {
		sink = newEchoWriter(w, string(kind))
	}

	ctx, cancel := operationContext(r)
	defer cancel()
	if err := rl.Stream(ctx, sink, client, kind, model); err != nil {
		// Client disconnect or shutdown: nothing left to write.
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		if relay.IsTooBusy(err) {
			IncrementBackpressure("streams")
		}
		writeJSONError(w, errorStatus(err), err.Error())
	}
	if lvl >= LevelInfo {
		if zlog != nil {
			z := zlog.Info().Str("kind", string(kind)).Str("model", model).Dur("dur", time.Since(start))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("stream end")
		} else {
			log.Printf("stream end kind=%s model=%s dur=%s", kind, model, time.Since(start))
		}
	}
}

// resolveClient binds the request to its upstream endpoint, honoring the
// per-request override header.
func resolveClient(w http.ResponseWriter, r *http.Request, res *upstream.Resolver) (*upstream.Client, bool) {
	client, err := res.ForRequest(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return client, true
}

// decodeJSON enforces the JSON content type and body-size cap, then decodes
// into dst. On failure it has already written the error response.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// bulkRequest decodes and validates a bulk-operation body.
func bulkRequest(w http.ResponseWriter, r *http.Request, res *upstream.Resolver) (*upstream.Client, []string, bool) {
	var req types.ModelsRequest
	if !decodeJSON(w, r, &req) {
		return nil, nil, false
	}
	var models []string
	for _, m := range req.Models {
		if strings.TrimSpace(m) != "" {
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		writeJSONError(w, http.StatusBadRequest, "models is required")
		return nil, nil, false
	}
	client, ok := resolveClient(w, r, res)
	if !ok {
		return nil, nil, false
	}
	return client, models, true
}

// writeRawList re-encodes upstream list entries without touching their
// daemon-specific fields.
func writeRawList(w http.ResponseWriter, key string, items []json.RawMessage) {
	if items == nil {
		items = []json.RawMessage{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{key: items}); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeBulk picks the aggregate status: 200 all ok, 207 partial failure,
// 502 total failure. The body always carries the per-item outcome.
func writeBulk(w http.ResponseWriter, anySucceeded bool, failures int, body any) {
	status := http.StatusOK
	switch {
	case failures > 0 && anySucceeded:
		status = http.StatusMultiStatus
	case failures > 0:
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
