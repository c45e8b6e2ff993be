// Package server is the local HTTP front end. Its routes are the navigation
// surface of the application and it forwards /api/ calls to the broker with
// the session's credential.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/smartrade/internal/guard"
	"github.com/florianilch/smartrade/internal/loginflow"
	"github.com/florianilch/smartrade/internal/session"
)

// Dependencies are the collaborators a Server is built from.
type Dependencies struct {
	Session *session.Session
	Router  *guard.Router
	Login   *loginflow.Flow

	// BrokerURL is the upstream for /api/ passthrough calls.
	BrokerURL *url.URL
	// BrokerTransport sets the broker header set on passthrough calls.
	BrokerTransport http.RoundTripper
	// TokenSource supplies the session credential for passthrough calls.
	TokenSource oauth2.TokenSource
}

// Server represents the local HTTP front end
type Server struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates a Server. No I/O is performed until Start.
func New(deps Dependencies) (*Server, error) {
	if deps.Session == nil || deps.Router == nil || deps.Login == nil {
		return nil, fmt.Errorf("missing session, router or login flow")
	}
	if deps.BrokerURL == nil || deps.TokenSource == nil {
		return nil, fmt.Errorf("missing broker URL or token source")
	}

	views := &viewHandlers{
		session: deps.Session,
		router:  deps.Router,
		login:   deps.Login,
	}
	api := newPassthrough(deps.BrokerURL, deps.BrokerTransport, deps.TokenSource)

	logger := slog.Default()
	wrap := func(h http.Handler) http.Handler {
		return applyMiddlewares(h, Logging(logger), Recovery)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", wrap(http.HandlerFunc(views.home)))
	mux.Handle("GET /login", wrap(http.HandlerFunc(views.loginView)))
	mux.Handle("POST /login", wrap(http.HandlerFunc(views.submitLogin)))
	mux.Handle("GET /dashboard", wrap(http.HandlerFunc(views.dashboard)))
	mux.Handle("POST /logout", wrap(http.HandlerFunc(views.logout)))
	mux.Handle("/api/", wrap(api))

	return &Server{mux: mux}, nil
}

// Front-end request limits. Views are small JSON documents; only a login
// submission waits on the broker.
const (
	readTimeout  = 10 * time.Second
	writeTimeout = 2 * time.Minute
	idleTimeout  = time.Minute
)

// ServeHTTP dispatches to the view and passthrough routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start binds address and serves the views on a background goroutine.
// A bind failure is returned directly. Serve failures after that arrive on
// the returned channel, which is closed when serving stops. Stop the server
// with Shutdown.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		// Requests inherit the application context for logging and cancellation
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	serveErr := make(chan error, 1)
	go func() {
		defer close(serveErr)
		if err := s.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	return serveErr, nil
}

// Shutdown stops accepting connections and waits for in-flight views and
// logins until ctx ends, then drops what is left.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	err := s.server.Shutdown(ctx)
	if err == nil {
		return nil
	}
	_ = s.server.Close()
	return fmt.Errorf("server shutdown: %w", err)
}
