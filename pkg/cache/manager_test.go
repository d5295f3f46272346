package cache

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/Sternrassler/offline-agent/pkg/fetch"
	"github.com/Sternrassler/offline-agent/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func testKey(t *testing.T, raw string) Key {
	t.Helper()
	k, err := NewKey("GET", mustParse(t, raw))
	if err != nil {
		t.Fatalf("NewKey(%q): %v", raw, err)
	}
	return k
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil backend")
		}
	}()
	NewManager(nil)
}

func TestManager_PutAndGet(t *testing.T) {
	manager := NewManager(NewMemoryBackend(0))
	ctx := context.Background()

	key := testKey(t, "https://app.example/assets/app.css")
	resp := &fetch.Response{
		Status: 200,
		Header: http.Header{"Content-Type": []string{"text/css"}},
		Body:   []byte("body{color:red}"),
	}

	snap, err := ResponseToSnapshot(key, resp)
	if err != nil {
		t.Fatalf("ResponseToSnapshot() error = %v", err)
	}

	if err := manager.Tier("app-asset-v1").Put(ctx, key, snap); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := manager.Tier("app-asset-v1").Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	out := SnapshotToResponse(got)
	if !bytes.Equal(out.Body, resp.Body) {
		t.Errorf("Body = %q, want %q", out.Body, resp.Body)
	}
	if out.Status != 200 {
		t.Errorf("Status = %d, want 200", out.Status)
	}
	if out.Header.Get("Content-Type") != "text/css" {
		t.Errorf("Content-Type = %q", out.Header.Get("Content-Type"))
	}
	if got.URL != "https://app.example/assets/app.css" {
		t.Errorf("URL = %q", got.URL)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(NewMemoryBackend(0))
	ctx := context.Background()

	_, err := manager.Tier("app-asset-v1").Get(ctx, testKey(t, "https://app.example/missing.js"))
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Get_InvalidEntry(t *testing.T) {
	backend := NewMemoryBackend(0)
	manager := NewManager(backend)
	ctx := context.Background()
	key := testKey(t, "https://app.example/broken")

	backend.PutBatch(ctx, "t", map[string][]byte{key.String(): []byte("not json")})

	_, err := manager.Tier("t").Get(ctx, key)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestManager_Match(t *testing.T) {
	manager := NewManager(NewMemoryBackend(0))
	ctx := context.Background()
	key := testKey(t, "https://app.example/images/fallback-image.png")

	snap := &Snapshot{URL: key.URL, Status: 200, Body: []byte("png")}
	if err := manager.Tier("app-static-v1").Put(ctx, key, snap); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, err := manager.Match(ctx, key, "app-asset-v1"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Match(asset) error = %v, want ErrCacheMiss", err)
	}

	got, err := manager.Match(ctx, key, "app-asset-v1", "app-static-v1")
	if err != nil {
		t.Fatalf("Match(asset, static) error = %v", err)
	}
	if string(got.Body) != "png" {
		t.Errorf("Body = %q", got.Body)
	}

	got, err = manager.Match(ctx, key)
	if err != nil {
		t.Fatalf("Match(all) error = %v", err)
	}
	if string(got.Body) != "png" {
		t.Errorf("Body = %q", got.Body)
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(NewMemoryBackend(0))
	ctx := context.Background()
	key := testKey(t, "https://app.example/")

	manager.Tier("app-static-v0").Put(ctx, key, &Snapshot{Status: 200})

	existed, err := manager.Delete(ctx, "app-static-v0")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !existed {
		t.Error("Delete() should report an existing tier")
	}

	if ok, _ := manager.Has(ctx, "app-static-v0"); ok {
		t.Error("tier still exists after Delete")
	}
	if _, err := manager.Tier("app-static-v0").Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after Delete error = %v, want ErrCacheMiss", err)
	}
}

func TestTier_PutAll_NilEntry(t *testing.T) {
	manager := NewManager(NewMemoryBackend(0))
	err := manager.Tier("t").PutAll(context.Background(), []Entry{{Key: testKey(t, "https://app.example/")}})
	if err == nil {
		t.Error("PutAll with nil snapshot should return error")
	}
}

func TestTier_Put_QuotaExceeded(t *testing.T) {
	manager := NewManager(NewMemoryBackend(8))
	err := manager.Tier("t").Put(context.Background(), testKey(t, "https://app.example/big"), &Snapshot{
		Status: 200,
		Body:   bytes.Repeat([]byte("x"), 64),
	})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("Put() error = %v, want ErrQuotaExceeded", err)
	}
}

func TestSnapshot_IsImmutableCopy(t *testing.T) {
	key := testKey(t, "https://app.example/a")
	resp := &fetch.Response{Status: 200, Header: http.Header{}, Body: []byte("abc")}

	snap, _ := ResponseToSnapshot(key, resp)
	resp.Body[0] = 'X'
	if string(snap.Body) != "abc" {
		t.Errorf("snapshot shares body with response: %q", snap.Body)
	}

	out := SnapshotToResponse(snap)
	out.Body[0] = 'Y'
	if string(snap.Body) != "abc" {
		t.Errorf("response shares body with snapshot: %q", snap.Body)
	}
}

func TestResponseToSnapshot_Nil(t *testing.T) {
	if _, err := ResponseToSnapshot(Key{}, nil); err == nil {
		t.Error("ResponseToSnapshot(nil) should fail")
	}
}

func TestManager_LogsAsTierManager(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	buf := &bytes.Buffer{}
	logging.Setup(logging.Config{Level: logging.LevelDebug, Output: buf})

	manager := NewManager(NewMemoryBackend(0))
	ctx := context.Background()
	key := testKey(t, "https://app.example/offline.html")
	snap := &Snapshot{Status: 200, Body: []byte("offline")}

	if err := manager.Tier("app-static-v1").Put(ctx, key, snap); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := manager.Tier("app-static-v1").Get(ctx, key); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, `"component":"tier-manager"`) || !strings.Contains(output, "Tier hit") {
		t.Errorf("output = %q, want a tier-manager hit entry", output)
	}
}
