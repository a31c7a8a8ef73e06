package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/camphub/camphub-go/headers"
	"github.com/camphub/camphub-go/kvstore"
	"github.com/camphub/camphub-go/routes"
)

const defaultBaseURL = "https://api.camphub.app/api/v1"
const defaultUserAgent = "camphub-sdk/0.4"

// Config wires credential storage, transport, and observability for the client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	// Store persists credentials across restarts. Defaults to an in-memory
	// store, which makes every run start anonymous.
	Store     kvstore.Store
	Logger    *zerolog.Logger
	Telemetry TelemetryHooks
	UserAgent string
	// OnSessionExpired fires once when the refresh protocol fails
	// irrecoverably. Hosts use it to route the actor to sign-in.
	OnSessionExpired func()
}

// Client is the authenticated entry point to the CampHub API. It behaves
// like the raw transport with credential injection and 401 recovery applied.
type Client struct {
	baseURL       string
	baseCookieURL *url.URL
	httpClient    *http.Client
	creds         *CredentialStore
	csrf          *CSRFProvider
	refresher     *refreshCoordinator
	events        *sessionBus
	outbound      authChain
	logger        zerolog.Logger
	telemetry     TelemetryHooks
	userAgent     string

	onSessionExpired func()

	// Grouped service clients.
	Auth    *AuthClient
	Session *SessionClient
}

// NewClient validates the configuration and returns a ready-to-use Client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return nil, ConfigError{Reason: err.Error()}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		jar, jarErr := cookiejar.New(nil)
		if jarErr != nil {
			return nil, jarErr
		}
		httpClient = &http.Client{Jar: jar}
	}
	store := cfg.Store
	if store == nil {
		store = kvstore.NewMemory()
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	client := &Client{
		baseURL:          normalized,
		baseCookieURL:    parsed,
		httpClient:       httpClient,
		creds:            NewCredentialStore(store),
		events:           newSessionBus(),
		logger:           logger,
		telemetry:        cfg.Telemetry,
		userAgent:        ua,
		onSessionExpired: cfg.OnSessionExpired,
	}
	client.outbound = authChain{bearerAuth{creds: client.creds}}
	client.csrf = &CSRFProvider{client: client}
	client.refresher = &refreshCoordinator{client: client}
	client.Auth = &AuthClient{client: client}
	client.Session = &SessionClient{client: client}
	return client, nil
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ConfigError{Reason: "base URL required"}
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", ConfigError{Reason: fmt.Sprintf("invalid base URL: %v", err)}
	}
	if u.Scheme == "" {
		return "", ConfigError{Reason: "base URL missing scheme (http/https)"}
	}
	if u.Host == "" {
		return "", ConfigError{Reason: "base URL missing host"}
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return strings.TrimSuffix(u.String(), "/"), nil
}

// Credentials exposes the credential store. UI code must route every token
// write through it; nothing else in the process may touch token state.
func (c *Client) Credentials() *CredentialStore {
	return c.creds
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	injectTraceparent(ctx, req)
	return req, nil
}

// csrfExempt paths never get a CSRF header: they must work for fully
// anonymous actors before any token can exist.
var csrfExempt = map[string]struct{}{
	routes.TokenObtain:   {},
	routes.TokenRefresh:  {},
	routes.CSRF:          {},
	routes.SessionSignup: {},
}

// refreshExempt paths never drive the refresh protocol on 401; a 401 there
// is a credential failure, not an expired access token.
var refreshExempt = map[string]struct{}{
	routes.TokenObtain:  {},
	routes.TokenRefresh: {},
}

func (c *Client) applyOutbound(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	c.outbound.Apply(req)
}

// prepare runs the outbound interceptors in fixed order: bearer injection
// first, then CSRF injection for mutating non-exempt requests.
func (c *Client) prepare(ctx context.Context, req *http.Request) {
	c.applyOutbound(req)
	if !isMutating(req.Method) {
		return
	}
	if _, exempt := csrfExempt[req.URL.Path]; exempt {
		return
	}
	token, _ := c.csrf.Resolve(ctx)
	if token != "" {
		req.Header.Set(headers.CSRFToken, token)
	}
}

// transport performs one raw round trip. Failures that produced no HTTP
// response surface as TransportError and are never retried by this layer.
func (c *Client) transport(req *http.Request) (*http.Response, error) {
	if c.telemetry.OnHTTPRequest != nil {
		c.telemetry.OnHTTPRequest(req.Context(), req)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.telemetry.OnHTTPResponse != nil {
		c.telemetry.OnHTTPResponse(req.Context(), req, resp, err, time.Since(start))
	}
	c.telemetry.metric(req.Context(), "sdk_http_request_latency_ms", float64(time.Since(start).Milliseconds()), map[string]string{
		"path": req.URL.Path,
	})
	if err != nil {
		return nil, TransportError{
			Kind:    classifyTransportErrorKind(err),
			Message: "request failed",
			Cause:   err,
		}
	}
	return resp, nil
}

// send runs the full pipeline: outbound injection, transport, inbound
// classification with an at-most-once refresh retry on 401.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	c.prepare(req.Context(), req)
	resp, err := c.transport(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return c.classify(resp)
	}
	if _, exempt := refreshExempt[req.URL.Path]; exempt {
		return c.classify(resp)
	}
	if req.Header.Get("Authorization") == "" {
		// Anonymous request: nothing to refresh.
		return c.classify(resp)
	}
	return c.recover(req, resp)
}

// classify turns error statuses into typed errors and invalidates the CSRF
// cache when a 403 indicates a CSRF rejection.
func (c *Client) classify(resp *http.Response) (*http.Response, error) {
	if resp.StatusCode < 400 {
		return resp, nil
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()
	err := decodeAPIError(resp)
	var apiErr APIError
	if errors.As(err, &apiErr) && isCSRFRejection(apiErr) {
		c.csrf.Invalidate()
	}
	return nil, err
}

// recover drives the refresh protocol for a 401 and re-issues the original
// request exactly once. A 401 on the retried request surfaces; there is no
// loop.
func (c *Client) recover(req *http.Request, resp *http.Response) (*http.Response, error) {
	origErr := decodeAPIError(resp)
	_ = resp.Body.Close()

	if err := c.refresher.refresh(req.Context()); err != nil {
		if errors.Is(err, errRefreshRejected) {
			return nil, SessionExpiredError{Cause: origErr}
		}
		// Transport-level refresh failure: credentials are intact, surface it.
		return nil, err
	}

	retry, err := cloneForRetry(req)
	if err != nil {
		return nil, origErr
	}
	c.prepare(retry.Context(), retry)
	retried, err := c.transport(retry)
	if err != nil {
		return nil, err
	}
	return c.classify(retried)
}

func cloneForRetry(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.GetBody == nil {
		return retry, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry.Body = body
	return retry, nil
}

// Do sends an authenticated JSON request through the full pipeline and
// decodes the response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, payload, out any) error {
	req, err := c.newJSONRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}
