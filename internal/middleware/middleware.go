// Package middleware provides the HTTP middleware chain applied to every route.
package middleware

import "net/http"

// System collects middleware and applies it to a handler.
type System interface {
	Use(mw func(http.Handler) http.Handler)
	Apply(h http.Handler) http.Handler
}

type middleware struct {
	stack []func(http.Handler) http.Handler
}

// New creates an empty middleware chain.
func New() System {
	return &middleware{}
}

func (m *middleware) Use(mw func(http.Handler) http.Handler) {
	m.stack = append(m.stack, mw)
}

// Apply wraps h so that the first registered middleware runs outermost.
func (m *middleware) Apply(h http.Handler) http.Handler {
	for i := len(m.stack) - 1; i >= 0; i-- {
		h = m.stack[i](h)
	}
	return h
}
