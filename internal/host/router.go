package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/triage-ai/toolhost/internal/backend"
	"github.com/triage-ai/toolhost/internal/rpc"
)

// Route sends requests in one namespace to a backend.
type Route struct {
	Prefix  string
	Backend backend.Backend
}

// Router picks exactly one backend per request.
type Router struct {
	routes   []Route
	fallback backend.Backend
}

// NewRouter builds a router. Routes are evaluated in order, first match
// wins; unmatched requests go to fallback.
func NewRouter(fallback backend.Backend, routes ...Route) (*Router, error) {
	if fallback == nil {
		return nil, errors.New("host: router needs a default backend")
	}
	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		if r.Prefix == "" || strings.Contains(r.Prefix, ".") {
			return nil, fmt.Errorf("host: invalid route prefix %q", r.Prefix)
		}
		if r.Backend == nil {
			return nil, fmt.Errorf("host: route %q has no backend", r.Prefix)
		}
		if seen[r.Prefix] {
			return nil, fmt.Errorf("host: duplicate route prefix %q", r.Prefix)
		}
		seen[r.Prefix] = true
	}
	return &Router{routes: routes, fallback: fallback}, nil
}

// Resolve returns the backend for req. A route with prefix P matches when the
// method starts with "P." or when the method is callTool and the tool name
// starts with "P.".
func (r *Router) Resolve(req *rpc.Request) backend.Backend {
	tool := ""
	if req.Method == rpc.MethodCallTool {
		tool = toolName(req.Params)
	}
	for _, route := range r.routes {
		prefix := route.Prefix + "."
		if strings.HasPrefix(req.Method, prefix) || (tool != "" && strings.HasPrefix(tool, prefix)) {
			return route.Backend
		}
	}
	return r.fallback
}

// Backends returns every distinct backend, routes first, then the fallback.
func (r *Router) Backends() []backend.Backend {
	out := make([]backend.Backend, 0, len(r.routes)+1)
	seen := make(map[backend.Backend]bool, len(r.routes)+1)
	for _, b := range append(routeBackends(r.routes), r.fallback) {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

func routeBackends(routes []Route) []backend.Backend {
	out := make([]backend.Backend, len(routes))
	for i, r := range routes {
		out[i] = r.Backend
	}
	return out
}

// toolName extracts params.name leniently; malformed params yield "" and are
// rejected later by the backend.
func toolName(params json.RawMessage) string {
	var p struct {
		Name string `json:"name"`
	}
	if len(params) == 0 || json.Unmarshal(params, &p) != nil {
		return ""
	}
	return p.Name
}
