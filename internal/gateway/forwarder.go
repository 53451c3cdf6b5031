// Package gateway relays authorized calls to the configured upstream
// service. Authorization happens before this package is reached; the
// forwarder only moves bytes.
package gateway

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrUpstreamTimeout indicates the upstream did not answer within
	// the bounded timeout.
	ErrUpstreamTimeout = errors.New("upstream timed out")

	// ErrUpstreamUnreachable indicates a connection-level failure.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
)

// hopByHopHeaders must not be forwarded (RFC 9110 section 7.6.1).
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailers":            {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Host":                {},
	"Content-Length":      {},
	"Accept-Encoding":     {},
}

// relayedResponseHeaders are the only upstream response headers passed
// back to the caller.
var relayedResponseHeaders = []string{"Content-Type", "Cache-Control", "Etag"}

// Forwarder relays requests to a single upstream base URL with a
// bounded timeout.
type Forwarder struct {
	baseURL      string
	client       *http.Client
	echoFallback bool
}

// NewForwarder creates a forwarder. An empty baseURL means no upstream
// is configured; whether the diagnostic echo fallback serves such
// requests is controlled by the explicit echoFallback flag.
func NewForwarder(baseURL string, timeout time.Duration, echoFallback bool) *Forwarder {
	return &Forwarder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		echoFallback: echoFallback,
	}
}

// Configured reports whether an upstream base URL is set.
func (f *Forwarder) Configured() bool {
	return f.baseURL != ""
}

// EchoEnabled reports whether the diagnostic echo fallback may serve
// requests when no upstream is configured.
func (f *Forwarder) EchoEnabled() bool {
	return f.echoFallback
}

// Forward relays the inbound request to the upstream, preserving
// method, path suffix, query string, and body, and writes the upstream
// status and body back verbatim. Hop-by-hop headers are stripped in
// both directions.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, path string) error {
	target := f.baseURL + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		return fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.URL.RawQuery = r.URL.RawQuery

	for name, values := range r.Header {
		if _, skip := hopByHopHeaders[http.CanonicalHeaderKey(name)]; skip {
			continue
		}
		req.Header[http.CanonicalHeaderKey(name)] = values
	}

	resp, err := f.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return ErrUpstreamTimeout
		}
		return fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	for _, name := range relayedResponseHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to relay upstream body: %w", err)
	}

	return nil
}
