// Package routes provides HTTP route registration and handler building.
package routes

import (
	"log/slog"
	"net/http"

	pkgroutes "github.com/JaimeStill/page-ingest/pkg/routes"
)

type routes struct {
	routes []pkgroutes.Route
	groups []pkgroutes.Group
	logger *slog.Logger
}

// New creates a route system with the specified logger.
func New(logger *slog.Logger) pkgroutes.System {
	return &routes{
		logger: logger.With("system", "routes"),
		groups: []pkgroutes.Group{},
		routes: []pkgroutes.Route{},
	}
}

func (r *routes) Endpoints() []pkgroutes.Endpoint {
	var out []pkgroutes.Endpoint
	for _, route := range r.routes {
		out = append(out, pkgroutes.Endpoint{Method: route.Method, Pattern: route.Pattern})
	}
	for _, group := range r.groups {
		out = appendGroup(out, "", group)
	}
	return out
}

func appendGroup(out []pkgroutes.Endpoint, parentPrefix string, group pkgroutes.Group) []pkgroutes.Endpoint {
	prefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		out = append(out, pkgroutes.Endpoint{Method: route.Method, Pattern: prefix + route.Pattern})
	}
	for _, child := range group.Children {
		out = appendGroup(out, prefix, child)
	}
	return out
}

// RegisterRoute adds a route to the route system.
func (r *routes) RegisterRoute(route pkgroutes.Route) {
	r.routes = append(r.routes, route)
}

// RegisterGroup adds a route group to the route system.
func (r *routes) RegisterGroup(group pkgroutes.Group) {
	r.groups = append(r.groups, group)
}

// Build constructs an http.Handler from all registered routes and groups.
func (r *routes) Build() http.Handler {
	mux := http.NewServeMux()

	for _, route := range r.routes {
		r.handle(mux, route.Method, route.Pattern, route.Handler)
	}

	for _, group := range r.groups {
		r.registerGroup(mux, "", group)
	}

	return mux
}

func (r *routes) registerGroup(mux *http.ServeMux, parentPrefix string, group pkgroutes.Group) {
	fullPrefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		r.handle(mux, route.Method, fullPrefix+route.Pattern, route.Handler)
	}
	for _, child := range group.Children {
		r.registerGroup(mux, fullPrefix, child)
	}
}

func (r *routes) handle(mux *http.ServeMux, method, pattern string, h http.HandlerFunc) {
	r.logger.Debug("route registered", "method", method, "pattern", pattern)
	mux.HandleFunc(pkgroutes.Endpoint{Method: method, Pattern: pattern}.String(), h)
}
