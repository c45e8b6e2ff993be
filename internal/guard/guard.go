// Package guard gates navigation on session state.
//
// Guards are subscriptions: each one reacts to every session transition and
// issues at most one navigation command per transition. They keep no state of
// their own; mounting a guard evaluates it once immediately, and the returned
// func unmounts it.
package guard

import (
	"github.com/florianilch/smartrade/internal/session"
)

// Route is a logical navigation destination.
type Route string

const (
	// RouteHome dispatches to login or dashboard once the session is known.
	RouteHome      Route = "/"
	RouteLogin     Route = "/login"
	RouteDashboard Route = "/dashboard"
)

// Navigator performs navigation commands.
type Navigator interface {
	Navigate(to Route)
}

// StateSource is the read and subscribe side of a session.
type StateSource interface {
	State() session.State
	Subscribe(fn func(session.State)) (unsubscribe func())
}

// Compile-time check that Session satisfies StateSource
var _ StateSource = (*session.Session)(nil)

// RequireAuth guards a protected view: once the session is known and not
// authenticated, it navigates to the login view. The returned bool is the
// authentication status at mount time so the caller can render a redirect
// placeholder instead of protected content.
func RequireAuth(src StateSource, nav Navigator) (authenticated bool, unmount func()) {
	check := func(st session.State) {
		if !st.IsLoading() && !st.IsAuthenticated() {
			nav.Navigate(RouteLogin)
		}
	}
	return src.State().IsAuthenticated(), mount(src, check)
}

// RedirectIfAuthenticated guards the login view: an authenticated session is
// sent to the dashboard.
func RedirectIfAuthenticated(src StateSource, nav Navigator) (unmount func()) {
	return mount(src, func(st session.State) {
		if st.IsAuthenticated() {
			nav.Navigate(RouteDashboard)
		}
	})
}

// DispatchHome guards the root route: it waits while Loading, then sends the
// user to the dashboard or the login view.
func DispatchHome(src StateSource, nav Navigator) (unmount func()) {
	return mount(src, func(st session.State) {
		switch st.Status {
		case session.StatusAuthenticated:
			nav.Navigate(RouteDashboard)
		case session.StatusUnauthenticated:
			nav.Navigate(RouteLogin)
		case session.StatusLoading:
			// wait for restore
		}
	})
}

// mount subscribes check and evaluates it once against the current state.
func mount(src StateSource, check func(session.State)) func() {
	unsubscribe := src.Subscribe(check)
	check(src.State())
	return unsubscribe
}
