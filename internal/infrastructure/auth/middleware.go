package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/patrimonio/patrimonio-webapi/internal/models"
	"github.com/patrimonio/patrimonio-webapi/internal/pipeline"
)

// Validator turns a raw bearer token into a principal.
type Validator interface {
	Validate(token string) (*models.Principal, error)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate attaches the principal described by the bearer token. On
// endpoints that do not allow anonymous access a missing or invalid token
// ends the request with 401. Requests without a selected endpoint pass through.
func Authenticate(v Validator) pipeline.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ep := pipeline.EndpointFrom(r.Context())
			token := bearerToken(r)

			if ep == nil || ep.Policy.AllowAnonymous {
				if token != "" {
					if p, err := v.Validate(token); err == nil {
						r = r.WithContext(WithPrincipal(r.Context(), p))
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if token == "" {
				challenge(w, "")
				return
			}
			p, err := v.Validate(token)
			if err != nil {
				slog.Warn("token rejected",
					"request_id", pipeline.RequestIDFrom(r.Context()),
					"endpoint", ep.Name,
					"error", err,
				)
				challenge(w, `error="invalid_token"`)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// Authorize enforces the role requirements of the selected endpoint.
func Authorize() pipeline.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ep := pipeline.EndpointFrom(r.Context())
			if ep == nil || ep.Policy.AllowAnonymous {
				next.ServeHTTP(w, r)
				return
			}

			p := PrincipalFrom(r.Context())
			if p == nil {
				challenge(w, "")
				return
			}
			if len(ep.Policy.Roles) > 0 && !p.IsInRole(ep.Policy.Roles...) {
				slog.Warn("access denied",
					"request_id", pipeline.RequestIDFrom(r.Context()),
					"endpoint", ep.Name,
					"user_id", p.UserID,
					"role", p.Role,
				)
				pipeline.WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func challenge(w http.ResponseWriter, params string) {
	value := "Bearer"
	if params != "" {
		value += " " + params
	}
	w.Header().Set("WWW-Authenticate", value)
	pipeline.WriteError(w, http.StatusUnauthorized, "unauthorized")
}
