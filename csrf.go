package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/camphub/camphub-go/headers"
	"github.com/camphub/camphub-go/routes"
)

// CSRFProvider resolves the request-forgery-protection token attached to
// mutating requests. Resolution order: same-site cookie, cached value,
// server fetch. Concurrent fallback fetches are deduplicated.
type CSRFProvider struct {
	client *Client
	group  singleflight.Group
}

// Resolve returns the CSRF token, or "" when none could be obtained. A
// failed server fetch is logged and degraded to "" rather than failing the
// request, since some endpoints tolerate its absence; the backend rejects
// the ones that do not.
func (p *CSRFProvider) Resolve(ctx context.Context) (string, error) {
	if tok := p.cookieToken(); tok != "" {
		return tok, nil
	}
	if tok := p.client.creds.CSRF(); tok != "" {
		return tok, nil
	}
	v, err, _ := p.group.Do("csrf", func() (any, error) {
		return p.fetch(ctx)
	})
	if err != nil {
		p.client.logger.Warn().Err(err).Msg("csrf token fetch failed, sending without token")
		return "", nil
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next mutating call re-resolves
// it. Driven by 403 responses that indicate a CSRF rejection.
func (p *CSRFProvider) Invalidate() {
	_ = p.client.creds.SetCSRF("")
	p.client.logger.Debug().Msg("csrf token cache invalidated")
}

func (p *CSRFProvider) cookieToken() string {
	jar := p.client.httpClient.Jar
	if jar == nil {
		return ""
	}
	for _, ck := range jar.Cookies(p.client.baseCookieURL) {
		if ck.Name == headers.CSRFCookie || ck.Name == headers.CSRFCookieSecure {
			return ck.Value
		}
	}
	return ""
}

func (p *CSRFProvider) fetch(ctx context.Context) (string, error) {
	req, err := p.client.newJSONRequest(ctx, http.MethodGet, routes.CSRF, nil)
	if err != nil {
		return "", err
	}
	p.client.applyOutbound(req)
	resp, err := p.client.transport(req)
	if err != nil {
		return "", err
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return "", decodeAPIError(resp)
	}
	var payload struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.CSRFToken == "" {
		return "", fmt.Errorf("sdk: csrf endpoint returned empty token")
	}
	if err := p.client.creds.SetCSRF(payload.CSRFToken); err != nil {
		return "", err
	}
	return payload.CSRFToken, nil
}
