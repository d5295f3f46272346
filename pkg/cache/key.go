package cache

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/offline-agent/pkg/fetch"
)

// ErrUnsupportedScheme is returned for targets outside http/https. Such
// requests can never be looked up or stored in a tier.
var ErrUnsupportedScheme = errors.New("unsupported scheme")

// Key is the normalized identity of a request: method plus target, query
// included.
type Key struct {
	// Method is the upper-cased request method.
	Method string

	// URL is the normalized absolute target.
	URL string
}

// NewKey builds a key for method and u.
//
// Normalization: method upper-cased (empty means GET), scheme and host
// lower-cased, empty path becomes "/", query parameters sorted by name,
// fragment and user info dropped.
func NewKey(method string, u *url.URL) (Key, error) {
	if u == nil {
		return Key{}, fmt.Errorf("url cannot be nil")
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Key{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	if method == "" {
		method = http.MethodGet
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(path)

	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(normalizeQuery(u.RawQuery))
	}

	return Key{
		Method: strings.ToUpper(method),
		URL:    b.String(),
	}, nil
}

// KeyFor builds the key of an intercepted request.
func KeyFor(req *fetch.Request) (Key, error) {
	if req == nil {
		return Key{}, fmt.Errorf("request cannot be nil")
	}
	return NewKey(req.Method, req.URL)
}

// String returns "METHOD URL".
//
// Example:
//
//	GET https://app.example/assets/app.css?v=2
func (k Key) String() string {
	return k.Method + " " + k.URL
}

// normalizeQuery sorts query parameters by name. Unparseable queries are kept
// verbatim.
func normalizeQuery(raw string) string {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	// Encode sorts by key and keeps value order within a key.
	return values.Encode()
}
