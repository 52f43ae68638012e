package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds each request's context. Pipeline stages and
// handlers are expected to watch ctx.Done(); the middleware does not abort
// them. A request that outlives its deadline is flagged in the request log.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				AddLogField(r.Context(), "timed_out", "true")
				AddLogField(r.Context(), "timeout", timeout.String())
			}
		})
	}
}
