// Package classify assigns intercepted requests to a handling class.
package classify

import (
	"net/url"
	"path"
	"strings"

	"github.com/Sternrassler/offline-agent/pkg/fetch"
)

// Class is the handling class of a request.
type Class string

const (
	// LiveData requests go network-first.
	LiveData Class = "live-data"

	// StaticAsset requests go cache-first against the asset tier.
	StaticAsset Class = "static-asset"

	// Navigation requests are full-document loads with an offline page
	// fallback.
	Navigation Class = "navigation"

	// Other requests go cache-first against the dynamic tier.
	Other Class = "other"
)

// Rules holds the matching tables.
type Rules struct {
	// LivePrefixes mark API and live-update paths.
	LivePrefixes []string

	// AssetPrefixes mark asset and image paths.
	AssetPrefixes []string

	// AssetExtensions mark script and stylesheet paths.
	AssetExtensions []string
}

// DefaultRules returns the standard matching tables.
func DefaultRules() Rules {
	return Rules{
		LivePrefixes:    []string{"/api/", "/live/"},
		AssetPrefixes:   []string{"/assets/", "/images/"},
		AssetExtensions: []string{".js", ".css"},
	}
}

// Classifier maps requests to classes. It holds no mutable state.
type Classifier struct {
	rules Rules
}

// New creates a classifier.
func New(rules Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the class of req. Rules are checked in priority order and
// the first match wins: live prefix, asset prefix or extension, navigation
// mode, other.
func (c *Classifier) Classify(req *fetch.Request) Class {
	p := req.Path()

	if hasAnyPrefix(p, c.rules.LivePrefixes) {
		return LiveData
	}

	if hasAnyPrefix(p, c.rules.AssetPrefixes) || hasAnyExtension(p, c.rules.AssetExtensions) {
		return StaticAsset
	}

	if req.Mode == fetch.ModeNavigate {
		return Navigation
	}

	return Other
}

// IsNetworkScheme reports whether u uses a scheme the agent may intercept.
// Everything else (extension-internal, data, file) bypasses the agent.
func IsNetworkScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}

func hasAnyPrefix(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func hasAnyExtension(p string, exts []string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
