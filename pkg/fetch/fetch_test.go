package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestModeFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		method string
		header http.Header
		want   Mode
	}{
		{
			name:   "explicit navigate",
			method: http.MethodGet,
			header: http.Header{"Sec-Fetch-Mode": []string{"navigate"}},
			want:   ModeNavigate,
		},
		{
			name:   "explicit no-cors",
			method: http.MethodGet,
			header: http.Header{"Sec-Fetch-Mode": []string{"no-cors"}},
			want:   ModeNoCORS,
		},
		{
			name:   "html accept without fetch metadata",
			method: http.MethodGet,
			header: http.Header{"Accept": []string{"text/html,application/xhtml+xml"}},
			want:   ModeNavigate,
		},
		{
			name:   "html accept on post is not a navigation",
			method: http.MethodPost,
			header: http.Header{"Accept": []string{"text/html"}},
			want:   ModeCORS,
		},
		{
			name:   "default",
			method: http.MethodGet,
			header: http.Header{},
			want:   ModeCORS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ModeFromHeader(tt.method, tt.header); got != tt.want {
				t.Errorf("ModeFromHeader() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromHTTPRequest_RestoresBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "https://app.example/api/items", strings.NewReader("payload"))

	got, err := FromHTTPRequest(req)
	if err != nil {
		t.Fatalf("FromHTTPRequest() error = %v", err)
	}
	if string(got.Body) != "payload" {
		t.Errorf("Body = %q, want %q", got.Body, "payload")
	}

	restored, _ := io.ReadAll(req.Body)
	if string(restored) != "payload" {
		t.Errorf("request body not restored, got %q", restored)
	}
}

func TestResponse_Clone(t *testing.T) {
	orig := &Response{
		Status: 200,
		Header: http.Header{"Content-Type": []string{"text/css"}},
		Body:   []byte("body{}"),
	}

	c := orig.Clone()
	c.Body[0] = 'X'
	c.Header.Set("Content-Type", "text/plain")

	if string(orig.Body) != "body{}" {
		t.Errorf("clone shares body with original: %q", orig.Body)
	}
	if orig.Header.Get("Content-Type") != "text/css" {
		t.Errorf("clone shares headers with original")
	}
}

func TestResponse_OK(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		want bool
	}{
		{name: "nil", resp: nil, want: false},
		{name: "200", resp: &Response{Status: 200}, want: true},
		{name: "200 opaque", resp: &Response{Status: 200, Opaque: true}, want: false},
		{name: "404", resp: &Response{Status: 404}, want: false},
		{name: "206", resp: &Response{Status: 206}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.OK(); got != tt.want {
				t.Errorf("OK() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-User-Agent", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	f := NewHTTPFetcher(HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test-agent/1.0"})

	req, err := NewRequest(server.URL+"/hello", ModeCORS)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
	if string(resp.Body) != "hello" {
		t.Errorf("Body = %q, want %q", resp.Body, "hello")
	}
	if got := resp.Header.Get("X-User-Agent"); got != "test-agent/1.0" {
		t.Errorf("User-Agent = %q, want %q", got, "test-agent/1.0")
	}
	if resp.Opaque {
		t.Error("same-origin cors response should not be opaque")
	}
}

func TestHTTPFetcher_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	f := NewHTTPFetcher(HTTPConfig{Timeout: time.Second})
	req, _ := NewRequest(addr+"/gone", ModeCORS)

	_, err := f.Fetch(context.Background(), req)
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Errorf("Fetch() error = %v, want ErrNetworkUnavailable", err)
	}
}

func TestHTTPFetcher_OpaqueCrossOrigin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("img"))
	}))
	defer server.Close()

	f := NewHTTPFetcher(DefaultHTTPConfig())
	req, _ := NewRequest(server.URL+"/pixel.png", ModeNoCORS)
	req.Origin, _ = url.Parse("https://app.example")

	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !resp.Opaque {
		t.Error("cross-origin no-cors response should be opaque")
	}
	if resp.OK() {
		t.Error("opaque response must not be cacheable")
	}
}
