package guard

import (
	"sync"
)

// MountFunc installs the guard of a view and returns its unmount func.
type MountFunc func(nav Navigator) (unmount func())

// Router is a minimal Navigator: it tracks the current route and keeps the
// guard of that route mounted. Guards may navigate again from inside their
// callback; the innermost navigation wins.
type Router struct {
	guards map[Route]MountFunc

	mu      sync.Mutex
	current Route
	gen     uint64
	unmount func()
}

// Compile-time check that Router implements Navigator
var _ Navigator = (*Router)(nil)

// NewRouter creates a Router with no current route.
func NewRouter(guards map[Route]MountFunc) *Router {
	return &Router{guards: guards}
}

// Routes returns the default guard table for src.
func Routes(src StateSource) map[Route]MountFunc {
	return map[Route]MountFunc{
		RouteHome: func(nav Navigator) func() {
			return DispatchHome(src, nav)
		},
		RouteLogin: func(nav Navigator) func() {
			return RedirectIfAuthenticated(src, nav)
		},
		RouteDashboard: func(nav Navigator) func() {
			_, unmount := RequireAuth(src, nav)
			return unmount
		},
	}
}

// Navigate makes to the current route, unmounting the previous route's guard
// and mounting the new one. Navigating to the current route is a no-op.
func (r *Router) Navigate(to Route) {
	r.mu.Lock()
	if r.current == to {
		r.mu.Unlock()
		return
	}
	r.gen++
	gen := r.gen
	prev := r.unmount
	r.unmount = nil
	r.current = to
	r.mu.Unlock()

	if prev != nil {
		prev()
	}

	mountFn, ok := r.guards[to]
	if !ok {
		return
	}

	// The guard may call Navigate before mountFn returns
	unmount := mountFn(r)

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		unmount()
		return
	}
	r.unmount = unmount
	r.mu.Unlock()
}

// Current returns the current route.
func (r *Router) Current() Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Close unmounts the current guard.
func (r *Router) Close() {
	r.mu.Lock()
	prev := r.unmount
	r.unmount = nil
	r.current = ""
	r.gen++
	r.mu.Unlock()

	if prev != nil {
		prev()
	}
}
