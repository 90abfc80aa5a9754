// Package httpserver provides the public HTTP API for DocMesh.
package httpserver

import (
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/arvhn/docmesh-go/internal/telemetry/logger"
)

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so the first listed runs outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID tags every request with an identifier, honoring a caller
// supplied X-Request-ID header. The identifier is echoed back on the
// response and reaches handlers through the request context, so log
// lines for one request can be correlated across the node.
func RequestID(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = "req-" + strings.ToLower(ulid.Make().String())
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := logger.WithRequestID(r.Context(), requestID)
			if log != nil {
				ctx = logger.WithLogger(ctx, log)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
