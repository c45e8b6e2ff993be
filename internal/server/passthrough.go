package server

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/florianilch/smartrade/internal/session"
	"github.com/florianilch/smartrade/internal/tokenstore"
)

// newPassthrough forwards /api/<path> to <broker>/<path>, authenticated with
// the session's bearer token.
func newPassthrough(upstream *url.URL, base http.RoundTripper, ts oauth2.TokenSource) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			rest := strings.TrimPrefix(pr.In.URL.Path, "/api/")
			pr.Out.URL = upstream.JoinPath(rest)
			pr.Out.URL.RawQuery = pr.In.URL.RawQuery
			pr.Out.Host = upstream.Host
		},
		Transport: &oauth2.Transport{Source: ts, Base: base},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			ctx := r.Context()
			if errors.Is(err, session.ErrNotAuthenticated) || errors.Is(err, session.ErrSessionExpired) {
				writeJSONError(ctx, w, "not authenticated", http.StatusUnauthorized)
				return
			}
			if errors.Is(err, tokenstore.ErrStorageUnavailable) {
				slog.WarnContext(ctx, "session check failed", "error", err)
				writeJSONError(ctx, w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			slog.ErrorContext(ctx, "broker request failed", "error", err)
			writeJSONError(ctx, w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		},
	}
}
