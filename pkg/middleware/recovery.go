package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/hubgate/hubgate/pkg/httputil"
	"github.com/hubgate/hubgate/pkg/observability"
)

// Recovery converts handler panics into 500 responses instead of
// tearing down the connection.
func Recovery(log *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if log != nil {
						log.WithFields(map[string]interface{}{
							"panic": fmt.Sprintf("%v", rec),
							"stack": string(debug.Stack()),
							"path":  r.URL.Path,
						}).Error("handler panic")
					}
					httputil.WriteInternalError(w, errors.New("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
