// Package testutil provides testing utilities for the offline agent.
package testutil

import (
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock origin path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOrigin is a configurable application origin for testing. It can be
// switched offline, in which case every connection is dropped without a
// response, which the HTTP fetcher sees as a network failure.
type MockOrigin struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses map[string]MockResponse
	offline   bool

	// Tracking
	requestCount int
	pathCounts   map[string]int
}

// NewMockOrigin creates a new mock origin server.
func NewMockOrigin() *MockOrigin {
	mock := &MockOrigin{
		responses:  make(map[string]MockResponse),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		offline := mock.offline
		if !offline {
			mock.requestCount++
			mock.pathCounts[r.URL.Path]++
		}
		resp, exists := mock.responses[r.URL.Path]
		mock.mu.Unlock()

		if offline {
			dropConnection(w)
			return
		}

		if !exists {
			http.NotFound(w, r)
			return
		}

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}))

	return mock
}

// dropConnection closes the underlying connection without writing a
// response.
func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("mock origin: response writer cannot be hijacked")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}

// URL returns the mock origin URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// BaseURL returns the parsed origin URL.
func (m *MockOrigin) BaseURL() *url.URL {
	u, _ := url.Parse(m.server.URL)
	return u
}

// Client returns an HTTP client for the origin.
func (m *MockOrigin) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// SetOffline switches the origin between dropping connections and serving.
func (m *MockOrigin) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// SetResponse configures the response for a path.
func (m *MockOrigin) SetResponse(p string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[p] = resp
}

// ServeFiles answers each path with 200 and the body "content of {path}",
// typed by extension.
func (m *MockOrigin) ServeFiles(paths ...string) {
	for _, p := range paths {
		m.SetResponse(p, NewFileResponse(p))
	}
}

// Reset clears all tracking counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
}

// RequestCount returns the number of requests answered.
func (m *MockOrigin) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests answered for path.
func (m *MockOrigin) PathCount(p string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[p]
}

// NewFileResponse creates a 200 response for a static file.
func NewFileResponse(p string) MockResponse {
	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       "content of " + p,
		Headers:    map[string]string{"Content-Type": contentType},
	}
}

// NewJSONResponse creates a 200 JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
