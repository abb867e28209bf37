package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hubgate/hubgate/pkg/contextkeys"
)

// RequestIDHeader carries the request ID on responses and may supply
// one on inbound requests from a trusted proxy.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request an ID and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := contextkeys.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
