package pipeline

import (
	"net/http"

	"github.com/rs/cors"
)

var standardMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

func corsOptions(methods ...string) cors.Options {
	return cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: methods,
		AllowedHeaders: []string{"*"},
	}
}

// CORS allows any origin, any request header and any method.
// Preflight requests are answered here and never reach authentication.
func CORS() Middleware {
	standard := cors.New(corsOptions(standardMethods...))
	known := make(map[string]bool, len(standardMethods))
	for _, m := range standardMethods {
		known[m] = true
	}

	return func(next http.Handler) http.Handler {
		fixed := standard.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method := r.Method
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				method = r.Header.Get("Access-Control-Request-Method")
			}
			if known[method] {
				fixed.ServeHTTP(w, r)
				return
			}
			// rs/cors matches methods against a fixed list, so an extension
			// method gets a policy naming it.
			methods := append(append([]string{}, standardMethods...), method)
			cors.New(corsOptions(methods...)).Handler(next).ServeHTTP(w, r)
		})
	}
}
