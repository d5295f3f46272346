// Package fetch defines the request and response shapes the agent operates on
// and the network fetcher that backs them.
package fetch

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Mode mirrors the fetch mode of an intercepted request.
type Mode string

const (
	// ModeNavigate is a full-document load.
	ModeNavigate Mode = "navigate"

	// ModeSameOrigin restricts the request to the page origin.
	ModeSameOrigin Mode = "same-origin"

	// ModeCORS is a cross-origin request with CORS checks.
	ModeCORS Mode = "cors"

	// ModeNoCORS is a cross-origin request whose response is opaque.
	ModeNoCORS Mode = "no-cors"
)

// Request is an intercepted outgoing request.
type Request struct {
	Method string
	URL    *url.URL
	Mode   Mode
	Header http.Header
	Body   []byte

	// Origin is the origin of the page that issued the request.
	// Used to decide whether a no-cors response is opaque.
	Origin *url.URL
}

// NewRequest builds a GET request for rawURL with the given mode.
func NewRequest(rawURL string, mode Mode) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	return &Request{
		Method: http.MethodGet,
		URL:    u,
		Mode:   mode,
		Header: make(http.Header),
	}, nil
}

// Path returns the request target path ("/" when empty).
func (r *Request) Path() string {
	if r.URL == nil || r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// FromHTTPRequest converts an outgoing *http.Request into a Request.
// The body is read fully and restored on req.
func FromHTTPRequest(req *http.Request) (*Request, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(b))
		body = b
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	return &Request{
		Method: method,
		URL:    req.URL,
		Mode:   ModeFromHeader(method, req.Header),
		Header: req.Header.Clone(),
		Body:   body,
	}, nil
}

// ModeFromHeader derives the fetch mode from Sec-Fetch-Mode. Without it, a
// GET that accepts text/html is treated as a navigation.
func ModeFromHeader(method string, h http.Header) Mode {
	switch Mode(strings.ToLower(h.Get("Sec-Fetch-Mode"))) {
	case ModeNavigate:
		return ModeNavigate
	case ModeSameOrigin:
		return ModeSameOrigin
	case ModeNoCORS:
		return ModeNoCORS
	case ModeCORS:
		return ModeCORS
	}
	if method == http.MethodGet && strings.Contains(h.Get("Accept"), "text/html") {
		return ModeNavigate
	}
	return ModeCORS
}
