package sdk

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/camphub/camphub-go/headers"
	"github.com/camphub/camphub-go/routes"
)

func TestResolvePrefersCookieOverNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == routes.CSRF {
			t.Error("csrf endpoint must not be called when the cookie is present")
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"ok": true})
	}))
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("jar: %v", err)
	}
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	jar.SetCookies(u, []*http.Cookie{{Name: headers.CSRFCookie, Value: "cookie-token"}})

	httpClient := srv.Client()
	httpClient.Jar = jar
	client := newTestClient(t, srv, Config{HTTPClient: httpClient})

	token, err := client.csrf.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if token != "cookie-token" {
		t.Fatalf("expected cookie token, got %q", token)
	}
}

func TestResolveFallsBackToCacheThenServer(t *testing.T) {
	var csrfCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != routes.CSRF {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		csrfCalls.Add(1)
		writeJSON(t, w, http.StatusOK, map[string]string{"csrf_token": "server-token"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})

	token, err := client.csrf.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if token != "server-token" {
		t.Fatalf("expected server token, got %q", token)
	}

	// Second resolution hits the cache.
	token, err = client.csrf.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve (cached): %v", err)
	}
	if token != "server-token" {
		t.Fatalf("expected cached token, got %q", token)
	}
	if got := csrfCalls.Load(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}
}

func TestConcurrentResolvesShareOneFetch(t *testing.T) {
	var csrfCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		csrfCalls.Add(1)
		time.Sleep(50 * time.Millisecond)
		writeJSON(t, w, http.StatusOK, map[string]string{"csrf_token": "server-token"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})

	const n = 8
	var wg sync.WaitGroup
	tokens := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = client.csrf.Resolve(context.Background())
		}(i)
	}
	wg.Wait()

	for i, tok := range tokens {
		if tok != "server-token" {
			t.Fatalf("resolver %d got %q", i, tok)
		}
	}
	if got := csrfCalls.Load(); got != 1 {
		t.Fatalf("expected 1 fallback fetch, got %d", got)
	}
}

func TestResolveDegradesToEmptyOnFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"code": "internal", "message": "boom"},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})
	token, err := client.csrf.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve must not fail the caller: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token on failure, got %q", token)
	}
}

func TestMutationProceedsWithoutCSRFWhenUnavailable(t *testing.T) {
	var mutationCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case routes.CSRF:
			writeJSON(t, w, http.StatusInternalServerError, map[string]any{
				"error": map[string]any{"code": "internal", "message": "boom"},
			})
		default:
			mutationCalls.Add(1)
			if got := r.Header.Get(headers.CSRFToken); got != "" {
				t.Errorf("expected no csrf header, got %q", got)
			}
			writeJSON(t, w, http.StatusCreated, map[string]any{"id": 1})
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})
	if err := client.Do(context.Background(), http.MethodPost, "/bunk-logs", map[string]string{"note": "x"}, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if got := mutationCalls.Load(); got != 1 {
		t.Fatalf("expected mutation sent, got %d calls", got)
	}
}

func TestInvalidateDropsCache(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://localhost:1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Credentials().SetCSRF("csrf-1"); err != nil {
		t.Fatalf("set csrf: %v", err)
	}
	client.csrf.Invalidate()
	if got := client.Credentials().CSRF(); got != "" {
		t.Fatalf("expected empty cache, got %q", got)
	}
}
