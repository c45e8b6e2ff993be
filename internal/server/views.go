package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/florianilch/smartrade/internal/broker"
	"github.com/florianilch/smartrade/internal/guard"
	"github.com/florianilch/smartrade/internal/loginflow"
	"github.com/florianilch/smartrade/internal/session"
)

// maxLoginBodySize bounds the login form body.
const maxLoginBodySize = 4 << 10

// View is the JSON body of a rendered view.
type View struct {
	View    string `json:"view"`
	Message string `json:"message,omitempty"`

	// Login view
	Submitting bool `json:"submitting,omitempty"`

	// Dashboard view
	UserID           string     `json:"user_id,omitempty"`
	SessionExpiresAt *time.Time `json:"session_expires_at,omitempty"`
	TokenExpiresAt   *time.Time `json:"token_expires_at,omitempty"`
}

type viewHandlers struct {
	session *session.Session
	router  *guard.Router
	login   *loginflow.Flow
}

// enter navigates to route and reports whether the route's guard kept it.
// If the guard moved elsewhere a redirect has been written.
func (v *viewHandlers) enter(w http.ResponseWriter, r *http.Request, route guard.Route) bool {
	v.router.Navigate(route)
	if current := v.router.Current(); current != route && current != "" {
		http.Redirect(w, r, string(current), http.StatusSeeOther)
		return false
	}
	return true
}

func (v *viewHandlers) home(w http.ResponseWriter, r *http.Request) {
	if !v.enter(w, r, guard.RouteHome) {
		return
	}
	writeJSON(r.Context(), w, View{View: "home", Message: "Loading..."}, http.StatusOK)
}

func (v *viewHandlers) loginView(w http.ResponseWriter, r *http.Request) {
	if !v.enter(w, r, guard.RouteLogin) {
		return
	}
	writeJSON(r.Context(), w, View{View: "login", Submitting: v.login.InFlight()}, http.StatusOK)
}

func (v *viewHandlers) submitLogin(w http.ResponseWriter, r *http.Request) {
	if !v.enter(w, r, guard.RouteLogin) {
		return
	}

	var creds broker.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBodySize)).Decode(&creds); err != nil {
		writeJSONError(r.Context(), w, loginflow.MessageInvalidCredentials, http.StatusBadRequest)
		return
	}

	// A started login runs to completion even if the client goes away
	ctx := context.WithoutCancel(r.Context())
	if err := v.login.Submit(ctx, creds); err != nil {
		writeJSONError(r.Context(), w, loginflow.UserMessage(err), loginStatus(err))
		return
	}

	// The login view guard has reacted to the new session
	http.Redirect(w, r, string(v.router.Current()), http.StatusSeeOther)
}

// loginStatus maps a login error to an HTTP status.
func loginStatus(err error) int {
	switch {
	case errors.Is(err, broker.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, broker.ErrRejected):
		return http.StatusUnauthorized
	case errors.Is(err, loginflow.ErrLoginInProgress):
		return http.StatusConflict
	case errors.Is(err, loginflow.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, broker.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (v *viewHandlers) dashboard(w http.ResponseWriter, r *http.Request) {
	if !v.enter(w, r, guard.RouteDashboard) {
		return
	}

	st := v.session.State()
	if !st.IsAuthenticated() {
		// Still restoring; the guard redirects once the session is known
		writeJSON(r.Context(), w, View{View: "dashboard", Message: "Redirecting to login..."}, http.StatusOK)
		return
	}

	view := View{
		View:             "dashboard",
		Message:          "Welcome to your trading dashboard",
		UserID:           st.Tokens.UserID,
		SessionExpiresAt: &st.ExpiresAt,
	}
	if exp, ok := st.Tokens.JWTExpiry(); ok {
		view.TokenExpiresAt = &exp
	}
	writeJSON(r.Context(), w, view, http.StatusOK)
}

func (v *viewHandlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := v.session.Logout(ctx); err != nil {
		slog.ErrorContext(ctx, "logout incomplete", "error", err)
	}
	v.router.Navigate(guard.RouteLogin)
	http.Redirect(w, r, string(guard.RouteLogin), http.StatusSeeOther)
}
