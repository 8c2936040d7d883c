// Package pipeline composes the HTTP request pipeline: an ordered list of
// stages, each of which either resolves the request or hands it, unchanged,
// to the next one.
package pipeline

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Middleware wraps the rest of the pipeline.
type Middleware func(http.Handler) http.Handler

// Stage is one named step of the pipeline.
type Stage struct {
	Name       string
	Middleware Middleware
}

// Pipeline is an http.Handler built once at startup from ordered stages.
type Pipeline struct {
	names   []string
	handler http.Handler
}

// New composes stages so that stages[0] sees the request first and terminal
// sees it last.
func New(terminal http.Handler, stages ...Stage) *Pipeline {
	h := terminal
	names := make([]string, len(stages))
	for i := len(stages) - 1; i >= 0; i-- {
		h = stages[i].Middleware(h)
		names[i] = stages[i].Name
	}
	return &Pipeline{names: names, handler: h}
}

// Names returns the stage names in execution order.
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// Recover turns a panic from later stages into a generic 500 without
// details. It is the production counterpart of DeveloperExceptionPage.
func Recover(logger *slog.Logger) Middleware {
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
				logger.Error("unhandled panic",
					slog.String("request_id", RequestIDFrom(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)
				WriteError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorResponse{Error: msg})
}
