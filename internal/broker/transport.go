package broker

import (
	"net/http"
)

// allowedHeaders defines the caller headers permitted to pass through to the broker.
var allowedHeaders = map[string]bool{
	"Content-Type":    true,
	"Content-Length":  true,
	"Accept":          true,
	"Accept-Encoding": true,
	"Authorization":   true,
}

// Identity is the client identification SmartAPI requires on every request.
type Identity struct {
	APIKey     string
	LocalIP    string
	PublicIP   string
	MACAddress string
}

// HeaderTransport is an http.RoundTripper that sets the SmartAPI header set
// and drops any other caller header.
type HeaderTransport struct {
	Base     http.RoundTripper
	Identity Identity
}

// Compile-time check that HeaderTransport implements http.RoundTripper.
var _ http.RoundTripper = (*HeaderTransport)(nil)

// RoundTrip implements http.RoundTripper interface.
func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	newReq := req.Clone(req.Context())

	// Filter headers so browser or CLI specifics never reach the broker
	originalHeaders := newReq.Header
	newReq.Header = make(http.Header)
	for key, values := range originalHeaders {
		if allowedHeaders[key] {
			newReq.Header[key] = values
		}
	}

	if newReq.Header.Get("Content-Type") == "" {
		newReq.Header.Set("Content-Type", "application/json")
	}
	newReq.Header.Set("Accept", "application/json")
	newReq.Header.Set("X-UserType", "USER")
	newReq.Header.Set("X-SourceID", "WEB")
	newReq.Header.Set("X-ClientLocalIP", t.Identity.LocalIP)
	newReq.Header.Set("X-ClientPublicIP", t.Identity.PublicIP)
	newReq.Header.Set("X-MACAddress", t.Identity.MACAddress)
	newReq.Header.Set("X-PrivateKey", t.Identity.APIKey)

	return base.RoundTrip(newReq)
}
