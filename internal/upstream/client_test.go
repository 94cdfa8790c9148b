package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

type fakeCache struct {
	mu    sync.Mutex
	items map[string]json.RawMessage
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string]json.RawMessage)}
}

func (f *fakeCache) Get(key string) (json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items[key]
	return v, ok
}

func (f *fakeCache) Set(key string, value json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = value
}

func TestClient_MissingCredentials(t *testing.T) {
	client := NewClient("http://unused", "", "", time.Second, newFakeCache())

	_, err := client.Request(context.Background(), "/device/list", nil)
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("Request() error = %v, want ErrMissingCredentials", err)
	}
}

func TestClient_SignedHeaders(t *testing.T) {
	var gotAccessKey, gotTimestamp, gotSignature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccessKey = r.Header.Get("Access-Key")
		gotTimestamp = r.Header.Get("Timestamp")
		gotSignature = r.Header.Get("Signature")
		w.Write([]byte(`{"code":0,"data":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ak", "sk", time.Second, newFakeCache())
	client.now = func() time.Time { return time.UnixMilli(1700000000000) }

	params := url.Values{}
	params.Set("deviceId", "dev-1")

	if _, err := client.Request(context.Background(), "/device/data/latest", params); err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	if gotAccessKey != "ak" {
		t.Errorf("Access-Key = %q, want %q", gotAccessKey, "ak")
	}
	if gotTimestamp != "1700000000000" {
		t.Errorf("Timestamp = %q, want %q", gotTimestamp, "1700000000000")
	}

	want := Sign("sk", "1700000000000", "/device/data/latest", "deviceId=dev-1")
	if gotSignature != want {
		t.Errorf("Signature = %q, want %q", gotSignature, want)
	}
}

func TestClient_CacheHitSkipsNetwork(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"code":0,"data":[1,2,3]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ak", "sk", time.Second, newFakeCache())

	first, err := client.Request(context.Background(), "/device/list", nil)
	if err != nil {
		t.Fatalf("first Request() error = %v", err)
	}

	second, err := client.Request(context.Background(), "/device/list", nil)
	if err != nil {
		t.Fatalf("second Request() error = %v", err)
	}

	if calls != 1 {
		t.Errorf("upstream calls = %d, want 1", calls)
	}
	if string(first) != string(second) {
		t.Errorf("cached payload %q differs from original %q", second, first)
	}
}

func TestClient_ConcurrentMissesCoalesced(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		// Hold the response open long enough for every caller to arrive
		// before the cache is filled.
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"code":0,"data":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ak", "sk", time.Second, newFakeCache())

	const callers = 8
	start := make(chan struct{})
	results := make(chan error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := client.Request(context.Background(), "/device/list", nil)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Fatalf("Request() error = %v", err)
		}
	}

	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 1 {
		t.Errorf("upstream calls = %d, want 1 (misses for one key should coalesce)", got)
	}
}

func TestClient_UpstreamErrorPreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"code":403,"msg":"bad signature"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ak", "sk", time.Second, newFakeCache())

	_, err := client.Request(context.Background(), "/device/list", nil)
	if err == nil {
		t.Fatal("Request() expected error, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Request() error = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusForbidden)
	}
	if apiErr.Body != `{"code":403,"msg":"bad signature"}` {
		t.Errorf("Body = %q, want original response body", apiErr.Body)
	}
}

func TestClient_ErrorNotCached(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"code":0,"data":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ak", "sk", time.Second, newFakeCache())

	if _, err := client.Request(context.Background(), "/device/list", nil); err == nil {
		t.Fatal("first Request() expected error, got nil")
	}
	if _, err := client.Request(context.Background(), "/device/list", nil); err != nil {
		t.Fatalf("second Request() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("upstream calls = %d, want 2", calls)
	}
}

func TestCacheKey(t *testing.T) {
	a := url.Values{}
	a.Set("deviceId", "x")
	a.Set("year", "2026")

	b := url.Values{}
	b.Set("year", "2026")
	b.Set("deviceId", "x")

	if CacheKey("/device/history", a) != CacheKey("/device/history", b) {
		t.Error("identical parameter sets should produce identical keys")
	}

	c := url.Values{}
	c.Set("deviceId", "y")
	c.Set("year", "2026")

	if CacheKey("/device/history", a) == CacheKey("/device/history", c) {
		t.Error("differing parameter sets should produce differing keys")
	}
}
