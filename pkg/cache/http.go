package cache

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/fetch"
)

// ResponseToSnapshot captures resp for storage under key.
// Headers and body are copied; later changes to resp do not affect the
// snapshot.
func ResponseToSnapshot(key Key, resp *fetch.Response) (*Snapshot, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	c := resp.Clone()
	return &Snapshot{
		URL:      key.URL,
		Status:   c.Status,
		Headers:  c.Header,
		Body:     c.Body,
		StoredAt: time.Now(),
	}, nil
}

// SnapshotToResponse rebuilds a response from a stored snapshot.
// The returned response is a fresh copy.
func SnapshotToResponse(s *Snapshot) *fetch.Response {
	if s == nil {
		return nil
	}
	header := s.Headers.Clone()
	if header == nil {
		header = make(http.Header)
	}
	var body []byte
	if s.Body != nil {
		body = append([]byte(nil), s.Body...)
	}
	return &fetch.Response{
		Status: s.Status,
		Header: header,
		Body:   body,
	}
}
