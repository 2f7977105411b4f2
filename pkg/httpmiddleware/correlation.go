package httpmiddleware

import (
	"net/http"

	"github.com/lewisedginton/present_ponder/pkg/logger"
)

// CorrelationID makes sure every request carries a UUID correlation ID in its header and context.
// A well-formed incoming ID is kept so browser retries can be traced end to end; anything else is replaced.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, id := logger.EnsureHTTPCorrelationID(r)
			w.Header().Set(logger.CorrelationIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}
