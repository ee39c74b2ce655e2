// Package kit provides the endpoint plumbing shared by every serve
// transport: a uniform Endpoint signature, middleware chaining, and
// adapters that mount endpoints on a concrete transport.
package kit

import "context"

// Endpoint is the transport-agnostic unit of work: one request in, one
// response out.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first argument becomes the outermost
// wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
