package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/camphub/camphub-go/headers"
	"github.com/camphub/camphub-go/routes"
)

func newTestClient(t *testing.T, srv *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = srv.URL
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = srv.Client()
	}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func unauthorizedBody() map[string]any {
	return map[string]any{
		"error": map[string]any{
			"code":    "token_not_valid",
			"message": "access token expired",
			"status":  401,
		},
	}
}

func TestSendAttachesBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer acc-1" {
			t.Errorf("expected bearer header, got %q", got)
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"ok": true})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})
	if err := client.Credentials().SetTokens(TokenPair{Access: "acc-1"}); err != nil {
		t.Fatalf("set tokens: %v", err)
	}
	if err := client.Do(context.Background(), http.MethodGet, "/bunk-logs", nil, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
}

func TestSendOmitsBearerWhenAnonymous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("expected no bearer header, got %q", got)
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"ok": true})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})
	if err := client.Do(context.Background(), http.MethodGet, "/bunk-logs", nil, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
}

func TestMutatingRequestResolvesCSRFOnce(t *testing.T) {
	var csrfCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case routes.CSRF:
			csrfCalls.Add(1)
			writeJSON(t, w, http.StatusOK, map[string]string{"csrf_token": "csrf-1"})
		case "/bunk-logs":
			if got := r.Header.Get(headers.CSRFToken); got != "csrf-1" {
				t.Errorf("expected csrf header, got %q", got)
			}
			writeJSON(t, w, http.StatusCreated, map[string]any{"id": 1})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})
	for i := 0; i < 3; i++ {
		if err := client.Do(context.Background(), http.MethodPost, "/bunk-logs", map[string]string{"note": "x"}, nil); err != nil {
			t.Fatalf("do %d: %v", i, err)
		}
	}
	if got := csrfCalls.Load(); got != 1 {
		t.Fatalf("expected 1 csrf-issue call, got %d", got)
	}
}

func TestSafeRequestsSkipCSRF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == routes.CSRF {
			t.Error("csrf endpoint must not be called for safe methods")
		}
		if got := r.Header.Get(headers.CSRFToken); got != "" {
			t.Errorf("expected no csrf header, got %q", got)
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"ok": true})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})
	if err := client.Do(context.Background(), http.MethodGet, "/bunk-logs", nil, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
}

func TestExemptPathsSkipCSRF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case routes.CSRF:
			t.Error("csrf endpoint must not be called for exempt paths")
			writeJSON(t, w, http.StatusOK, map[string]string{"csrf_token": "x"})
		case routes.TokenObtain:
			writeJSON(t, w, http.StatusOK, TokenPair{Access: "acc-1", Refresh: "ref-1"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})
	if _, err := client.Auth.Obtain(context.Background(), ObtainTokenRequest{Email: "a@b.c", Password: "pw"}); err != nil {
		t.Fatalf("obtain: %v", err)
	}
}

func TestTransportFailureSurfacesWithoutRefresh(t *testing.T) {
	var refreshCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == routes.TokenRefresh {
			refreshCalls.Add(1)
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"ok": true})
	}))
	srv.Close() // connection refused from here on

	client := newTestClient(t, srv, Config{HTTPClient: http.DefaultClient})
	if err := client.Credentials().SetTokens(TokenPair{Access: "acc", Refresh: "ref"}); err != nil {
		t.Fatalf("set tokens: %v", err)
	}

	err := client.Do(context.Background(), http.MethodGet, "/bunk-logs", nil, nil)
	var transportErr TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if got := refreshCalls.Load(); got != 0 {
		t.Fatalf("expected no refresh attempts, got %d", got)
	}
	if pair := client.Credentials().Tokens(); pair.Access != "acc" {
		t.Fatalf("expected credentials untouched, got %+v", pair)
	}
}

func TestValidationErrorsPassThroughWithFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == routes.CSRF {
			writeJSON(t, w, http.StatusOK, map[string]string{"csrf_token": "csrf-1"})
			return
		}
		writeJSON(t, w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"code":    "validation_failed",
				"message": "invalid input",
				"fields": []map[string]string{
					{"field": "date", "message": "required"},
				},
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})
	err := client.Do(context.Background(), http.MethodPost, "/bunk-logs", map[string]string{}, nil)
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if len(apiErr.Fields) != 1 || apiErr.Fields[0].Field != "date" {
		t.Fatalf("unexpected fields %+v", apiErr.Fields)
	}
}

func TestForbiddenWithCSRFReasonInvalidatesCache(t *testing.T) {
	var csrfCalls atomic.Int64
	var mu sync.Mutex
	rejectNext := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case routes.CSRF:
			csrfCalls.Add(1)
			writeJSON(t, w, http.StatusOK, map[string]string{"csrf_token": "csrf-1"})
		case "/bunk-logs":
			mu.Lock()
			reject := rejectNext
			rejectNext = false
			mu.Unlock()
			if reject {
				writeJSON(t, w, http.StatusForbidden, map[string]any{
					"error": map[string]any{
						"code":    "csrf_failed",
						"message": "CSRF token missing or incorrect",
					},
				})
				return
			}
			writeJSON(t, w, http.StatusCreated, map[string]any{"id": 1})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})

	// First mutation resolves and caches the token.
	if err := client.Do(context.Background(), http.MethodPost, "/bunk-logs", map[string]string{"note": "a"}, nil); err != nil {
		t.Fatalf("first do: %v", err)
	}
	if got := csrfCalls.Load(); got != 1 {
		t.Fatalf("expected 1 csrf call, got %d", got)
	}

	// A CSRF-rejected 403 surfaces and drops the cache.
	mu.Lock()
	rejectNext = true
	mu.Unlock()
	err := client.Do(context.Background(), http.MethodPost, "/bunk-logs", map[string]string{"note": "b"}, nil)
	if !IsForbidden(err) {
		t.Fatalf("expected forbidden error, got %v", err)
	}

	// The next mutation re-resolves instead of reusing the bad value.
	if err := client.Do(context.Background(), http.MethodPost, "/bunk-logs", map[string]string{"note": "c"}, nil); err != nil {
		t.Fatalf("third do: %v", err)
	}
	if got := csrfCalls.Load(); got != 2 {
		t.Fatalf("expected csrf re-resolution, got %d calls", got)
	}
}
