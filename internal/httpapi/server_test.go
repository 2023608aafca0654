package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"modelhub/internal/relay"
	"modelhub/internal/upstream"
	"modelhub/pkg/types"
)

// fakeDaemon is a minimal upstream model daemon.
type fakeDaemon struct {
	mu        sync.Mutex
	deleted   []string
	generated []generateCall
	failOn    map[string]string // model -> error message
}

type generateCall struct {
	Model     string `json:"model"`
	KeepAlive string `json:"keep_alive"`
}

func (d *fakeDaemon) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"models":[{"name":"llama3.2:latest","size":42,"details":{"family":"llama"}},{"name":"phi3:mini","size":7}]}`)
	})
	mux.HandleFunc("/api/ps", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"models":[{"name":"llama3.2:latest","size":42,"size_vram":42}]}`)
	})
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"license":"mit","details":{"family":"llama"}}`)
	})
	mux.HandleFunc("/api/delete", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		d.mu.Lock()
		defer d.mu.Unlock()
		if msg, bad := d.failOn[req.Model]; bad {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"`+msg+`"}`)
			return
		}
		d.deleted = append(d.deleted, req.Model)
		io.WriteString(w, `{}`)
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generateCall
		json.NewDecoder(r.Body).Decode(&req)
		d.mu.Lock()
		defer d.mu.Unlock()
		if msg, bad := d.failOn[req.Model]; bad {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"`+msg+`"}`)
			return
		}
		d.generated = append(d.generated, req)
		io.WriteString(w, `{"done":true}`)
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		d.mu.Lock()
		defer d.mu.Unlock()
		if msg, bad := d.failOn[req.Model]; bad {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"`+msg+`"}`)
			return
		}
		io.WriteString(w, "{\"status\":\"downloading\",\"completed\":1,\"total\":2}\n{\"status\":\"success\"}\n")
	})
	return mux
}

// newTestMux builds the full handler over a fake daemon.
func newTestMux(t *testing.T, d *fakeDaemon) (http.Handler, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(d.handler())
	t.Cleanup(srv.Close)
	res, err := upstream.NewResolver(srv.URL)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	return NewMux(res, relay.New(4, zerolog.Nop())), srv
}

func postJSON(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPullStreamsProgress(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	w := postJSON(h, http.MethodPost, "/api/pull", `{"model":"llama3.2:latest"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("content-type=%s", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 ndjson lines, got %d: %q", len(lines), w.Body.String())
	}
}

func TestPullModelRequired(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	w := postJSON(h, http.MethodPost, "/api/pull", `{"model":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestPullBadJSON(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	w := postJSON(h, http.MethodPost, "/api/pull", "not-json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestPullUnsupportedMediaType(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	req := httptest.NewRequest(http.MethodPost, "/api/pull", bytes.NewBufferString(`{"model":"m"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestPullUpstreamErrorIsBufferedJSON(t *testing.T) {
	d := &fakeDaemon{failOn: map[string]string{"ghost:latest": "pull model manifest: file does not exist"}}
	h, _ := newTestMux(t, d)
	w := postJSON(h, http.MethodPost, "/api/pull", `{"model":"ghost:latest"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !strings.Contains(body.Error, "file does not exist") {
		t.Fatalf("body=%+v", body)
	}
	if w.Header().Get("Transfer-Encoding") != "" {
		t.Fatal("chunked framing must not start for pre-stream failures")
	}
}

func TestPullUpstreamUnreachableMaps502(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	res, err := upstream.NewResolver(srv.URL)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	h := NewMux(res, relay.New(4, zerolog.Nop()))
	w := postJSON(h, http.MethodPost, "/api/pull", `{"model":"llama3.2:latest"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestUpdateModelUsesModelNameField(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	w := postJSON(h, http.MethodPost, "/api/update-model", `{"modelName":"llama3.2:latest"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"status":"success"`) {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestListModels(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 || body.Models[0].Name != "llama3.2:latest" {
		t.Fatalf("body=%+v", body)
	}
	// Daemon-specific fields survive the round trip.
	if body.Models[0].Details["family"] != "llama" {
		t.Fatalf("details=%+v", body.Models[0].Details)
	}
}

func TestPs(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	req := httptest.NewRequest(http.MethodGet, "/api/ps", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.PsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 1 || body.Models[0].SizeVRAM != 42 {
		t.Fatalf("body=%+v", body)
	}
}

func TestShow(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	w := postJSON(h, http.MethodPost, "/api/show", `{"model":"llama3.2:latest"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"license":"mit"`) {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestShowModelRequired(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	w := postJSON(h, http.MethodPost, "/api/show", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestBulkDeleteAllSucceed(t *testing.T) {
	d := &fakeDaemon{}
	h, _ := newTestMux(t, d)
	w := postJSON(h, http.MethodDelete, "/api/models", `{"models":["a","b"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.DeleteModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !body.Success || body.Deleted != 2 || len(body.Failed) != 0 {
		t.Fatalf("body=%+v", body)
	}
}

func TestBulkDeletePartialFailure(t *testing.T) {
	d := &fakeDaemon{failOn: map[string]string{"b": "model not found"}}
	h, _ := newTestMux(t, d)
	w := postJSON(h, http.MethodDelete, "/api/models", `{"models":["a","b"]}`)
	if w.Code != http.StatusMultiStatus {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.DeleteModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !body.Success || body.Deleted != 1 {
		t.Fatalf("body=%+v", body)
	}
	if len(body.Failed) != 1 || body.Failed[0].Model != "b" || !strings.Contains(body.Failed[0].Error, "model not found") {
		t.Fatalf("failed=%+v", body.Failed)
	}
}

func TestBulkDeleteTotalFailure(t *testing.T) {
	d := &fakeDaemon{failOn: map[string]string{"a": "nope", "b": "nope"}}
	h, _ := newTestMux(t, d)
	w := postJSON(h, http.MethodDelete, "/api/models", `{"models":["a","b"]}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestBulkDeleteEmptyModels(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	w := postJSON(h, http.MethodDelete, "/api/models", `{"models":["  "]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestRunAndStopKeepAlive(t *testing.T) {
	d := &fakeDaemon{}
	h, _ := newTestMux(t, d)

	w := postJSON(h, http.MethodPost, "/api/models/run", `{"models":["llama3.2:latest"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("run status=%d body=%s", w.Code, w.Body.String())
	}
	w = postJSON(h, http.MethodPost, "/api/models/stop", `{"models":["llama3.2:latest"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("stop status=%d body=%s", w.Code, w.Body.String())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.generated) != 2 {
		t.Fatalf("generated=%+v", d.generated)
	}
	if d.generated[0].KeepAlive == "0" {
		t.Fatalf("run must not unload: %+v", d.generated[0])
	}
	if d.generated[1].KeepAlive != "0" {
		t.Fatalf("stop must unload: %+v", d.generated[1])
	}
}

func TestSetEndpoint(t *testing.T) {
	d := &fakeDaemon{}
	srv := httptest.NewServer(d.handler())
	defer srv.Close()
	res, err := upstream.NewResolver("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	h := NewMux(res, relay.New(4, zerolog.Nop()))

	w := postJSON(h, http.MethodPost, "/api/set-endpoint", `{"endpoint":"`+srv.URL+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if res.Default() != srv.URL {
		t.Fatalf("default=%s", res.Default())
	}
	// Requests now reach the new daemon.
	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("models status=%d", rec.Code)
	}
}

func TestSetEndpointInvalid(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	w := postJSON(h, http.MethodPost, "/api/set-endpoint", `{"endpoint":"ftp://nope"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestEndpointHeaderOverride(t *testing.T) {
	// Default resolver points nowhere; the override header routes the
	// request to a live daemon.
	d := &fakeDaemon{}
	srv := httptest.NewServer(d.handler())
	defer srv.Close()
	res, err := upstream.NewResolver("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	h := NewMux(res, relay.New(4, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	req.Header.Set(upstream.EndpointHeader, srv.URL)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyzUpstreamDown(t *testing.T) {
	res, err := upstream.NewResolver("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	h := NewMux(res, relay.New(4, zerolog.Nop()))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestBodyTooLarge(t *testing.T) {
	h, _ := newTestMux(t, &fakeDaemon{})
	big := `{"model":"` + strings.Repeat("a", int(maxBodyBytes)+10) + `"}`
	w := postJSON(h, http.MethodPost, "/api/pull", big)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}
