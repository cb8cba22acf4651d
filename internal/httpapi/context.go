package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// serverBaseCtx is a process-level context that can be canceled on shutdown.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context that is canceled when either a or b is done.
// The returned cancel func must be called to release the goroutine when handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
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

// generationContext derives the context a generation runs under: canceled on
// shutdown, when parent ends, or after the configured timeout. It carries the
// per-request logger.
func generationContext(r *http.Request, parent context.Context, transport string) (context.Context, context.CancelFunc) {
	ctx, cancel := joinContexts(serverBaseCtx, parent)
	if generateTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, time.Duration(generateTimeout)*time.Second)
		prev := cancel
		cancel = func() { tcancel(); prev() }
	}
	l := requestLogger(r).With().Str("transport", transport).Logger()
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		l = l.With().Str("request_id", rid).Logger()
	}
	return l.WithContext(ctx), cancel
}
