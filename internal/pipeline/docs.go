package pipeline

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// DocumentPath is where the OpenAPI document is published.
const DocumentPath = "/swagger/v1/swagger.json"

var swaggerUIPaths = map[string]bool{
	"/index.html":                      true,
	"/swagger-ui.css":                  true,
	"/swagger-ui-bundle.js":            true,
	"/swagger-ui-standalone-preset.js": true,
	"/favicon-16x16.png":               true,
	"/favicon-32x32.png":               true,
	"/oauth2-redirect.html":            true,
}

// Docs publishes the swag document registered under instanceName at
// DocumentPath and the Swagger UI at the application root, which redirects
// to the UI page.
func Docs(instanceName string) Middleware {
	ui := httpSwagger.Handler(httpSwagger.URL(DocumentPath))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			switch {
			case r.URL.Path == DocumentPath:
				doc, err := swag.ReadDoc(instanceName)
				if err != nil {
					WriteError(w, http.StatusInternalServerError, "document unavailable")
					return
				}
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				_, _ = w.Write([]byte(doc))
			case r.URL.Path == "/":
				http.Redirect(w, r, "/index.html", http.StatusMovedPermanently)
			case swaggerUIPaths[r.URL.Path]:
				ui.ServeHTTP(w, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
