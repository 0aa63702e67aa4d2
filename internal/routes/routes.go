package routes

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"consultas-gateway/internal/cache"
)

// Route maps one gateway path to an upstream path and the query parameters it
// takes. Exactly one of Required or OneOf is set:
//   - Required: every listed parameter must be present; they form a
//     composite key joined with "_" in declaration order
//   - OneOf: the first present parameter (in declaration order) is the key
type Route struct {
	Path     string   `koanf:"path" json:"path"`
	Upstream string   `koanf:"upstream" json:"upstream"`
	Required []string `koanf:"required" json:"required,omitempty"`
	OneOf    []string `koanf:"one_of" json:"one_of,omitempty"`
}

// ValidationError is a missing or empty query parameter. Message is user
// facing.
type ValidationError struct {
	Params  []string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Bind checks q against the route and builds the cache request. Only the
// route's own parameters are forwarded upstream.
func (r Route) Bind(q url.Values) (cache.Request, error) {
	req := cache.Request{Route: r.Path, Params: url.Values{}}

	if len(r.OneOf) > 0 {
		for _, name := range r.OneOf {
			if v := strings.TrimSpace(q.Get(name)); v != "" {
				req.ParamName = name
				req.ParamValue = v
				req.Params.Set(name, v)
				return req, nil
			}
		}
		return cache.Request{}, &ValidationError{
			Params:  r.OneOf,
			Message: "Debe proporcionar al menos uno de los parámetros: " + strings.Join(r.OneOf, ", "),
		}
	}

	var missing []string
	values := make([]string, 0, len(r.Required))
	for _, name := range r.Required {
		v := strings.TrimSpace(q.Get(name))
		if v == "" {
			missing = append(missing, name)
			continue
		}
		values = append(values, v)
		req.Params.Set(name, v)
	}
	switch {
	case len(missing) == 1:
		return cache.Request{}, &ValidationError{Params: missing, Message: "El parámetro " + missing[0] + " es requerido"}
	case len(missing) > 1:
		return cache.Request{}, &ValidationError{Params: missing, Message: "Los parámetros " + strings.Join(missing, ", ") + " son requeridos"}
	}

	req.ParamName = strings.Join(r.Required, "_")
	req.ParamValue = strings.Join(values, "_")
	return req, nil
}

// Parameters lists every parameter the route understands.
func (r Route) Parameters() []string {
	if len(r.OneOf) > 0 {
		return r.OneOf
	}
	return r.Required
}

// Table is an ordered set of routes.
type Table []Route

// Validate rejects malformed routes, duplicate paths and paths whose
// sanitized names collide (they would share a storage prefix).
func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("routes: table is empty")
	}
	paths := make(map[string]bool, len(t))
	prefixes := make(map[string]string, len(t))

	for i, r := range t {
		if !strings.HasPrefix(r.Path, "/") || len(r.Path) < 2 {
			return fmt.Errorf("routes: [%d] path %q must start with / and name an endpoint", i, r.Path)
		}
		if reserved(r.Path) {
			return fmt.Errorf("routes: %s is reserved by the gateway", r.Path)
		}
		if r.Upstream == "" {
			return fmt.Errorf("routes: %s: upstream path is required", r.Path)
		}
		if (len(r.Required) == 0) == (len(r.OneOf) == 0) {
			return fmt.Errorf("routes: %s: exactly one of required or one_of must be set", r.Path)
		}
		for _, p := range r.Parameters() {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("routes: %s: empty parameter name", r.Path)
			}
		}
		if paths[r.Path] {
			return fmt.Errorf("routes: duplicate path %s", r.Path)
		}
		paths[r.Path] = true

		prefix := cache.RoutePrefix(r.Path)
		if other, ok := prefixes[prefix]; ok {
			return fmt.Errorf("routes: %s and %s share storage prefix %s", other, r.Path, prefix)
		}
		prefixes[prefix] = r.Path
	}
	return nil
}

// Lookup returns the route registered for path.
func (t Table) Lookup(path string) (Route, bool) {
	for _, r := range t {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// reserved reports paths served by the gateway itself.
func reserved(path string) bool {
	switch path {
	case "/healthz", "/metrics", "/routes":
		return true
	}
	return path == "/admin" || strings.HasPrefix(path, "/admin/")
}
