package pipeline

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// Policy is the access rule attached to an endpoint.
type Policy struct {
	AllowAnonymous bool
	// Roles, when set, restricts the endpoint to principals holding one of them.
	Roles []string
}

var (
	Anonymous     = Policy{AllowAnonymous: true}
	Authenticated = Policy{}
)

func RequireRoles(roles ...string) Policy {
	return Policy{Roles: roles}
}

// Endpoint is the controller action selected by the routing stage.
type Endpoint struct {
	Name    string
	Handler http.Handler
	Vars    map[string]string
	Policy  Policy
}

type endpointKey struct{}

func WithEndpoint(ctx context.Context, ep *Endpoint) context.Context {
	return context.WithValue(ctx, endpointKey{}, ep)
}

// EndpointFrom returns the selected endpoint, or nil when routing matched nothing.
func EndpointFrom(ctx context.Context) *Endpoint {
	ep, _ := ctx.Value(endpointKey{}).(*Endpoint)
	return ep
}

// RouteTable is the set of controller routes together with their policies.
type RouteTable struct {
	router   *mux.Router
	policies map[*mux.Route]Policy
}

func NewRouteTable() *RouteTable {
	return &RouteTable{
		router:   mux.NewRouter(),
		policies: make(map[*mux.Route]Policy),
	}
}

// Handle registers h for method and path template under policy.
func (t *RouteTable) Handle(method, path string, h http.Handler, policy Policy) *mux.Route {
	route := t.router.Handle(path, h).Methods(method)
	t.policies[route] = policy
	return route
}

func (t *RouteTable) HandleFunc(method, path string, h http.HandlerFunc, policy Policy) *mux.Route {
	return t.Handle(method, path, h, policy)
}

// Match selects the endpoint for r. A path that exists under another method
// yields a 405 endpoint; an unknown path yields nil.
func (t *RouteTable) Match(r *http.Request) *Endpoint {
	var match mux.RouteMatch
	if t.router.Match(r, &match) && match.MatchErr == nil {
		name, err := match.Route.GetPathTemplate()
		if err != nil {
			name = r.URL.Path
		}
		return &Endpoint{
			Name:    r.Method + " " + name,
			Handler: match.Handler,
			Vars:    match.Vars,
			Policy:  t.policies[match.Route],
		}
	}
	if match.MatchErr == mux.ErrMethodMismatch {
		return &Endpoint{
			Name:    "method-not-allowed",
			Handler: http.HandlerFunc(methodNotAllowed),
			Policy:  Anonymous,
		}
	}
	return nil
}

// Routing selects the endpoint and stores it in the request context. It never
// resolves the request itself.
func Routing(table *RouteTable) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ep := table.Match(r)
			if ep == nil {
				next.ServeHTTP(w, r)
				return
			}
			if info := requestInfoFrom(r.Context()); info != nil {
				info.Endpoint = ep.Name
			}
			next.ServeHTTP(w, r.WithContext(WithEndpoint(r.Context(), ep)))
		})
	}
}

// Dispatch is the terminal handler: it runs the selected endpoint or answers 404.
func Dispatch() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ep := EndpointFrom(r.Context())
		if ep == nil {
			WriteError(w, http.StatusNotFound, "not found")
			return
		}
		ep.Handler.ServeHTTP(w, mux.SetURLVars(r, ep.Vars))
	})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
}
