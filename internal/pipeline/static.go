package pipeline

import (
	"net/http"
	"path"
	"strings"
)

// StaticFiles serves existing regular files from root for requests under
// prefix ("" means the application root). It only acts when routing selected
// no endpoint; misses fall through to the next stage.
func StaticFiles(prefix string, root http.FileSystem) Middleware {
	prefix = strings.TrimSuffix(prefix, "/")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if EndpointFrom(r.Context()) != nil || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
				next.ServeHTTP(w, r)
				return
			}

			name, ok := stripPrefix(r.URL.Path, prefix)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if containsDotDot(r.URL.Path) {
				WriteError(w, http.StatusBadRequest, "invalid URL path")
				return
			}

			f, err := root.Open(path.Clean("/" + name))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil || info.IsDir() {
				next.ServeHTTP(w, r)
				return
			}
			http.ServeContent(w, r, info.Name(), info.ModTime(), f)
		})
	}
}

func stripPrefix(p, prefix string) (string, bool) {
	if prefix == "" {
		return p, true
	}
	if !strings.HasPrefix(p, prefix+"/") {
		return "", false
	}
	return strings.TrimPrefix(p, prefix), true
}

func containsDotDot(v string) bool {
	if !strings.Contains(v, "..") {
		return false
	}
	for _, ent := range strings.FieldsFunc(v, func(r rune) bool { return r == '/' || r == '\\' }) {
		if ent == ".." {
			return true
		}
	}
	return false
}
