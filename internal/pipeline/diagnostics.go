package pipeline

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// DeveloperExceptionPage recovers panics from later stages and renders the
// panic value and stack trace. Only installed in development.
func DeveloperExceptionPage(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				stack := debug.Stack()
				logger.Error("unhandled panic",
					slog.String("request_id", RequestIDFrom(r.Context())),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rvr),
				)

				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.Header().Set("X-Content-Type-Options", "nosniff")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, "An unhandled exception occurred while processing the request.\n\n")
				fmt.Fprintf(w, "%s %s\n\n", r.Method, r.URL.RequestURI())
				fmt.Fprintf(w, "panic: %v\n\n%s", rvr, stack)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
