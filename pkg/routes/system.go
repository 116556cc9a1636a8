package routes

import "net/http"

// System collects routes and groups and builds the service handler.
type System interface {
	RegisterGroup(group Group)
	RegisterRoute(route Route)
	Build() http.Handler
	// Endpoints lists every registered route with its group prefixes
	// applied, in registration order.
	Endpoints() []Endpoint
}

// Endpoint is a registered route resolved to its full pattern.
type Endpoint struct {
	Method  string
	Pattern string
}

// String returns the endpoint in http.ServeMux pattern form.
func (e Endpoint) String() string {
	return e.Method + " " + e.Pattern
}
