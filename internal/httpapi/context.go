package httpapi

import (
	"context"
	"net/http"
)

// serverBaseCtx is a process-level context canceled on shutdown. Defaults
// to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// operationContext returns a context canceled by either server shutdown or
// the client going away, so a long-running upstream relay never outlives
// its downstream caller. The cancel func must be called when the handler
// ends to release the watcher goroutine.
func operationContext(r *http.Request) (context.Context, context.CancelFunc) {
	a, b := serverBaseCtx, r.Context()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
