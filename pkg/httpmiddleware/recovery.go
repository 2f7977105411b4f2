package httpmiddleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/lewisedginton/present_ponder/pkg/logger"
)

const panicResponse = `{"error":"Internal server error"}`

// Recovery turns a panic into a JSON 500 and logs it with the request's
// correlation id and stack. http.ErrAbortHandler is re-panicked.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity, as net/http does
					panic(rec)
				}

				fields := []logger.LogField{
					logger.StringField("panic_error", fmt.Sprintf("%v", rec)),
					logger.HTTPMethodField(r.Method),
					logger.HTTPPathField(r.URL.Path),
					logger.ClientIPField(r.RemoteAddr),
					logger.StringField("user_agent", r.UserAgent()),
					logger.StringField("stack_trace", string(debug.Stack())),
				}
				if r.URL.RawQuery != "" {
					fields = append(fields, logger.StringField("query_params", r.URL.RawQuery))
				}
				logger.GetLoggerFromContext(r.Context(), log).Error("HTTP request panic recovered", fields...)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Connection", "close")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(panicResponse))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
