package middleware

import "github.com/netkrida/myhome-sub001/pkg/ports"

// Middleware allows wrapping a Backend to add behavior.
type Middleware func(ports.Backend) ports.Backend

// Chain applies middlewares so the first one is the outermost.
func Chain(backend ports.Backend, mws ...Middleware) ports.Backend {
	for i := len(mws) - 1; i >= 0; i-- {
		backend = mws[i](backend)
	}
	return backend
}
