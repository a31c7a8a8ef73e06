package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/camphub/camphub-go/routes"
)

// refreshCoordinator ensures at most one in-flight refresh call
// system-wide. Every 401 that arrives while a refresh is pending joins the
// pending call and observes the same outcome.
type refreshCoordinator struct {
	client *Client
	group  singleflight.Group
}

func (r *refreshCoordinator) refresh(ctx context.Context) error {
	_, err, _ := r.group.Do("token-refresh", func() (any, error) {
		return nil, r.client.refreshOnce(ctx)
	})
	return err
}

// errRefreshRejected marks a refresh failure that already expired the
// session, as opposed to a transport failure that left credentials intact.
var errRefreshRejected = errors.New("sdk: refresh rejected")

func (c *Client) refreshOnce(ctx context.Context) (err error) {
	if c.telemetry.OnSessionRefresh != nil {
		defer func() { c.telemetry.OnSessionRefresh(ctx, err) }()
	}

	pair := c.creds.Tokens()
	if pair.Refresh == "" {
		c.expireSession()
		return fmt.Errorf("%w: no refresh token stored", errRefreshRejected)
	}

	payload := struct {
		Refresh string `json:"refresh"`
	}{Refresh: pair.Refresh}
	req, err := c.newJSONRequest(ctx, http.MethodPost, routes.TokenRefresh, payload)
	if err != nil {
		return err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.transport(req)
	if err != nil {
		// Network failure, not a rejected token. Credentials stay put.
		return err
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		apiErr := decodeAPIError(resp)
		c.expireSession()
		return fmt.Errorf("%w: %w", errRefreshRejected, apiErr)
	}

	var renewed TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&renewed); err != nil {
		return err
	}
	if renewed.Access == "" {
		c.expireSession()
		return fmt.Errorf("%w: empty access token in refresh response", errRefreshRejected)
	}
	if err := c.creds.SetTokens(renewed); err != nil {
		return err
	}
	c.logger.Debug().Msg("access token refreshed")
	return nil
}

// expireSession clears credentials, marks the session anonymous, and
// notifies subscribers exactly once per failed refresh. The configured
// OnSessionExpired hook is the navigation seam to the sign-in entry point.
func (c *Client) expireSession() {
	_ = c.creds.Clear()
	c.Session.setAuthenticated(false)
	c.logger.Info().Msg("session expired, credentials cleared")
	c.events.publish(SessionEvent{Kind: SessionEventExpired, State: SessionState{}})
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}
