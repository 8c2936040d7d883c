package pipeline

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// tracer records its name and passes the request on.
func tracer(name string, trace *[]string) Stage {
	return Stage{Name: name, Middleware: func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*trace = append(*trace, name)
			next.ServeHTTP(w, r)
		})
	}}
}

func TestPipeline_Order(t *testing.T) {
	var trace []string
	terminal := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace = append(trace, "dispatch")
	})
	p := New(terminal, tracer("a", &trace), tracer("b", &trace), tracer("c", &trace))

	p.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "c", "dispatch"}, trace)
	assert.Equal(t, []string{"a", "b", "c"}, p.Names())
}

func TestPipeline_ShortCircuit(t *testing.T) {
	var trace []string
	stop := Stage{Name: "stop", Middleware: func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	}}
	terminal := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("terminal must not run")
	})
	p := New(terminal, tracer("a", &trace), stop, tracer("b", &trace))

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, []string{"a"}, trace)
}

func TestPipeline_NamesIsACopy(t *testing.T) {
	var trace []string
	p := New(Dispatch(), tracer("a", &trace))
	names := p.Names()
	names[0] = "changed"
	assert.Equal(t, []string{"a"}, p.Names())
}

func panicking(w http.ResponseWriter, r *http.Request) {
	panic("boom")
}

func TestRecover_GenericError(t *testing.T) {
	p := New(http.HandlerFunc(panicking), Stage{Name: "exception-handler", Middleware: Recover(discardLogger())})

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestDeveloperExceptionPage(t *testing.T) {
	p := New(http.HandlerFunc(panicking), Stage{Name: "developer-exception-page", Middleware: DeveloperExceptionPage(discardLogger())})

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "panic: boom")
	assert.Contains(t, body, "GET /api/x")
	assert.Contains(t, body, "goroutine")
}

func TestRecover_PassesThrough(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) })
	for _, mw := range []Middleware{Recover(discardLogger()), DeveloperExceptionPage(discardLogger())} {
		rec := httptest.NewRecorder()
		mw(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusAccepted, rec.Code)
	}
}

func newTable() *RouteTable {
	table := NewRouteTable()
	table.HandleFunc(http.MethodGet, "/api/items/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"id": mux.Vars(r)["id"]})
	}, Authenticated)
	table.HandleFunc(http.MethodPost, "/api/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, Anonymous)
	return table
}

func TestRouteTable_Match(t *testing.T) {
	table := newTable()

	ep := table.Match(httptest.NewRequest(http.MethodGet, "/api/items/42", nil))
	require.NotNil(t, ep)
	assert.Equal(t, "GET /api/items/{id:[0-9]+}", ep.Name)
	assert.Equal(t, map[string]string{"id": "42"}, ep.Vars)
	assert.False(t, ep.Policy.AllowAnonymous)

	ep = table.Match(httptest.NewRequest(http.MethodPost, "/api/login", nil))
	require.NotNil(t, ep)
	assert.True(t, ep.Policy.AllowAnonymous)

	ep = table.Match(httptest.NewRequest(http.MethodDelete, "/api/items/42", nil))
	require.NotNil(t, ep)
	assert.Equal(t, "method-not-allowed", ep.Name)

	assert.Nil(t, table.Match(httptest.NewRequest(http.MethodGet, "/nothing-here", nil)))
}

func TestRoutingAndDispatch(t *testing.T) {
	p := New(Dispatch(), Stage{Name: "routing", Middleware: Routing(newTable())})

	tests := []struct {
		method, path string
		status       int
		body         string
	}{
		{http.MethodGet, "/api/items/42", http.StatusOK, `{"id":"42"}`},
		{http.MethodPut, "/api/items/42", http.StatusMethodNotAllowed, `{"error":"method not allowed"}`},
		{http.MethodGet, "/api/items/abc", http.StatusNotFound, `{"error":"not found"}`},
		{http.MethodGet, "/missing", http.StatusNotFound, `{"error":"not found"}`},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			p.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func staticPipeline() *Pipeline {
	wwwroot := fstest.MapFS{
		"index.txt":        {Data: []byte("default root")},
		"css/site.css":     {Data: []byte("body{}")},
		"img/shadowed.png": {Data: []byte("from default root")},
	}
	images := fstest.MapFS{
		"logo.png":     {Data: []byte("png-bytes")},
		"shadowed.png": {Data: []byte("from images root")},
	}
	return New(Dispatch(),
		Stage{Name: "routing", Middleware: Routing(newTable())},
		Stage{Name: "static-files", Middleware: StaticFiles("", http.FS(wwwroot))},
		Stage{Name: "static-images", Middleware: StaticFiles("/img", http.FS(images))},
	)
}

func TestStaticFiles(t *testing.T) {
	p := staticPipeline()

	tests := []struct {
		name   string
		method string
		path   string
		status int
		body   string
	}{
		{"default root file", http.MethodGet, "/index.txt", http.StatusOK, "default root"},
		{"nested file", http.MethodGet, "/css/site.css", http.StatusOK, "body{}"},
		{"image with prefix stripped", http.MethodGet, "/img/logo.png", http.StatusOK, "png-bytes"},
		{"default root wins on overlap", http.MethodGet, "/img/shadowed.png", http.StatusOK, "from default root"},
		{"head request", http.MethodHead, "/img/logo.png", http.StatusOK, ""},
		{"missing image", http.MethodGet, "/img/nope.png", http.StatusNotFound, `{"error":"not found"}`},
		{"directory is not served", http.MethodGet, "/css", http.StatusNotFound, `{"error":"not found"}`},
		{"image prefix alone", http.MethodGet, "/img", http.StatusNotFound, `{"error":"not found"}`},
		{"post is not served", http.MethodPost, "/index.txt", http.StatusNotFound, `{"error":"not found"}`},
		{"traversal", http.MethodGet, "/img/../index.txt", http.StatusBadRequest, `{"error":"invalid URL path"}`},
		{"encoded traversal", http.MethodGet, "/img/%2e%2e/index.txt", http.StatusBadRequest, `{"error":"invalid URL path"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			p.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			if strings.HasPrefix(tt.body, "{") {
				assert.JSONEq(t, tt.body, rec.Body.String())
			} else {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestStaticFiles_EndpointTakesPrecedence(t *testing.T) {
	table := NewRouteTable()
	table.HandleFunc(http.MethodGet, "/index.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("controller"))
	}, Anonymous)
	p := New(Dispatch(),
		Stage{Name: "routing", Middleware: Routing(table)},
		Stage{Name: "static-files", Middleware: StaticFiles("", http.FS(fstest.MapFS{"index.txt": {Data: []byte("file")}}))},
	)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.txt", nil))
	assert.Equal(t, "controller", rec.Body.String())
}

func TestContainsDotDot(t *testing.T) {
	assert.True(t, containsDotDot("/a/../b"))
	assert.True(t, containsDotDot(`/a\..\b`))
	assert.True(t, containsDotDot(".."))
	assert.False(t, containsDotDot("/a/b..c/d"))
	assert.False(t, containsDotDot("/a/b"))
}

func TestCORS(t *testing.T) {
	var reached bool
	h := CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusUnauthorized)
	}))

	t.Run("Preflight", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodOptions, "/api/equipment", nil)
		req.Header.Set("Origin", "https://frontend.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.False(t, reached)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
		assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("SimpleRequest", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodGet, "/api/equipment", nil)
		req.Header.Set("Origin", "https://frontend.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.True(t, reached)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("ExtensionMethodPreflight", func(t *testing.T) {
		for _, method := range []string{"PROPFIND", "PURGE"} {
			reached = false
			req := httptest.NewRequest(http.MethodOptions, "/api/equipment", nil)
			req.Header.Set("Origin", "https://frontend.example")
			req.Header.Set("Access-Control-Request-Method", method)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.False(t, reached, method)
			assert.Equal(t, http.StatusNoContent, rec.Code, method)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), method)
			assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), method)
		}
	})

	t.Run("ExtensionMethodRequest", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest("PURGE", "/img/logo.png", nil)
		req.Header.Set("Origin", "https://frontend.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.True(t, reached)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestIDAndLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	var seen string
	p := New(Dispatch(),
		Stage{Name: "request-id", Middleware: RequestID()},
		Stage{Name: "request-logger", Middleware: Logger(logger)},
		Stage{Name: "routing", Middleware: Routing(newTable())},
		Stage{Name: "probe", Middleware: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFrom(r.Context())
				next.ServeHTTP(w, r)
			})
		}},
	)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/1", nil))
	id := rec.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, seen)
	assert.Contains(t, logs.String(), `"status":200`)
	assert.Contains(t, logs.String(), id)

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	rec = httptest.NewRecorder()
	p.ServeHTTP(rec, req)
	assert.Equal(t, "caller-id", rec.Header().Get(RequestIDHeader))
	assert.Contains(t, logs.String(), `"status":404`)
}
