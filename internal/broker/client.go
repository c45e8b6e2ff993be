package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/florianilch/smartrade/internal/credentials"
)

var (
	// ErrNetwork is returned when the broker is unreachable or answers with
	// something other than a well-formed 2xx response.
	ErrNetwork = errors.New("broker unreachable")
	// ErrRejected is returned when the broker declines the login.
	ErrRejected = errors.New("login rejected")
)

const (
	// DefaultBaseURL is the SmartAPI production host.
	DefaultBaseURL = "https://apiconnect.angelbroking.com/"

	loginPath = "rest/auth/angelbroking/user/v1/loginByPassword"

	// maxResponseSize bounds the login response read into memory.
	maxResponseSize = 1 << 20
)

// Config describes how to reach the broker.
type Config struct {
	BaseURL  string
	Identity Identity
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	baseTransport http.RoundTripper
}

// WithTransport sets a custom base transport for broker requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.baseTransport = transport
	}
}

// Client calls the SmartAPI authentication endpoint.
type Client struct {
	baseURL    *url.URL
	transport  *HeaderTransport
	httpClient *http.Client
}

// New creates a Client. No I/O is performed.
func New(cfg Config, opts ...Option) (*Client, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid broker URL %q: scheme and host required", cfg.BaseURL)
	}

	c := &clientConfig{baseTransport: http.DefaultTransport}
	for _, opt := range opts {
		opt(c)
	}

	transport := &HeaderTransport{Base: c.baseTransport, Identity: cfg.Identity}

	return &Client{
		baseURL:   baseURL,
		transport: transport,
		// No client timeout: callers bound requests with their context
		httpClient: &http.Client{Transport: transport},
	}, nil
}

// BaseURL returns the broker base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Transport returns the header-injecting transport for other broker calls.
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}

type loginRequest struct {
	ClientCode string `json:"clientcode"`
	Password   string `json:"password"`
	TOTP       string `json:"totp"`
}

type loginResponse struct {
	Status    bool               `json:"status"`
	Message   string             `json:"message"`
	ErrorCode string             `json:"errorcode"`
	Data      *loginResponseData `json:"data"`
}

type loginResponseData struct {
	JWTToken     string  `json:"jwtToken"`
	RefreshToken string  `json:"refreshToken"`
	FeedToken    string  `json:"feedToken"`
	State        *string `json:"state"`
}

// Login exchanges credentials for a session TokenBundle. Credentials are
// validated first; invalid ones never reach the network.
func (c *Client) Login(ctx context.Context, creds Credentials) (credentials.TokenBundle, error) {
	if err := creds.Validate(); err != nil {
		return credentials.TokenBundle{}, err
	}

	body, err := json.Marshal(loginRequest{
		ClientCode: creds.ClientCode,
		Password:   creds.Password,
		TOTP:       creds.TOTP,
	})
	if err != nil {
		return credentials.TokenBundle{}, fmt.Errorf("encoding login request: %w", err)
	}

	endpoint := c.baseURL.JoinPath(loginPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return credentials.TokenBundle{}, fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return credentials.TokenBundle{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return credentials.TokenBundle{}, fmt.Errorf("%w: unexpected status %d", ErrNetwork, resp.StatusCode)
	}

	var parsed loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&parsed); err != nil {
		return credentials.TokenBundle{}, fmt.Errorf("%w: decoding response: %w", ErrNetwork, err)
	}

	if !parsed.Status {
		slog.DebugContext(ctx, "broker rejected login", "errorcode", parsed.ErrorCode, "message", parsed.Message)
		return credentials.TokenBundle{}, fmt.Errorf("%w: %s %s", ErrRejected, parsed.ErrorCode, parsed.Message)
	}
	if parsed.Data == nil {
		return credentials.TokenBundle{}, fmt.Errorf("%w: no token data received", ErrRejected)
	}

	return credentials.TokenBundle{
		JWTToken:     parsed.Data.JWTToken,
		RefreshToken: parsed.Data.RefreshToken,
		FeedToken:    parsed.Data.FeedToken,
		UserID:       creds.ClientCode,
	}, nil
}
