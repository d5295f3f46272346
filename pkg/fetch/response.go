package fetch

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
)

// Response is a fully buffered response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte

	// Opaque marks a cross-origin no-cors result whose contents must not be
	// stored.
	Opaque bool
}

// Empty returns a response with the given status, no headers and no body.
func Empty(status int) *Response {
	return &Response{Status: status, Header: make(http.Header)}
}

// Clone returns a deep copy so one copy can be stored while the other is
// handed to the caller.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		Opaque: r.Opaque,
	}
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return c
}

// OK reports whether the response may be written to a tier: status 200 and
// not opaque.
func (r *Response) OK() bool {
	return r != nil && r.Status == http.StatusOK && !r.Opaque
}

// ToHTTPResponse converts the response for an http.RoundTripper caller.
func (r *Response) ToHTTPResponse(req *http.Request) *http.Response {
	header := r.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Content-Length", strconv.Itoa(len(r.Body)))

	return &http.Response{
		Status:        strconv.Itoa(r.Status) + " " + http.StatusText(r.Status),
		StatusCode:    r.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}
