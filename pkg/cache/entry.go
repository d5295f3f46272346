package cache

import (
	"net/http"
	"time"
)

// Snapshot is a stored response captured at write time.
type Snapshot struct {
	// URL is the normalized target the response was stored for.
	URL string `json:"url"`

	// Status is the HTTP status code of the stored response.
	Status int `json:"status"`

	// Headers are the response headers.
	Headers http.Header `json:"headers"`

	// Body is the response body.
	Body []byte `json:"body"`

	// StoredAt is when the snapshot was written.
	StoredAt time.Time `json:"stored_at"`
}

// Size returns the approximate stored size in bytes.
func (s *Snapshot) Size() int {
	if s == nil {
		return 0
	}
	n := len(s.Body) + len(s.URL)
	for k, vs := range s.Headers {
		n += len(k)
		for _, v := range vs {
			n += len(v)
		}
	}
	return n
}

// Entry pairs a key with the snapshot stored under it.
type Entry struct {
	Key      Key
	Snapshot *Snapshot
}
