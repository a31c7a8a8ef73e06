package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/camphub/camphub-go/routes"
)

// ObtainTokenRequest exchanges user credentials for a bearer token pair.
type ObtainTokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that required fields are set.
func (r ObtainTokenRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// AuthClient wraps the bearer-token protocol endpoints.
type AuthClient struct {
	client *Client
}

// Obtain exchanges credentials for an access/refresh pair, stores it, and
// announces the authenticated transition.
func (a *AuthClient) Obtain(ctx context.Context, req ObtainTokenRequest) (TokenPair, error) {
	if a == nil || a.client == nil {
		return TokenPair{}, fmt.Errorf("sdk: auth client not initialized")
	}
	if err := req.Validate(); err != nil {
		return TokenPair{}, fmt.Errorf("sdk: %w", err)
	}
	httpReq, err := a.client.newJSONRequest(ctx, http.MethodPost, routes.TokenObtain, req)
	if err != nil {
		return TokenPair{}, err
	}
	resp, err := a.client.send(httpReq)
	if err != nil {
		return TokenPair{}, err
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()
	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return TokenPair{}, err
	}
	if pair.Access == "" {
		return TokenPair{}, fmt.Errorf("sdk: token endpoint returned empty access token")
	}
	if err := a.client.creds.SetTokens(pair); err != nil {
		return TokenPair{}, err
	}
	a.client.Session.setAuthenticated(true)
	a.client.events.publish(SessionEvent{
		Kind:  SessionEventAuthenticated,
		State: SessionState{Authenticated: true},
	})
	return pair, nil
}

// Me returns the authenticated user's profile via the full pipeline,
// including transparent refresh on an expired access token.
func (a *AuthClient) Me(ctx context.Context) (UserSummary, error) {
	if a == nil || a.client == nil {
		return UserSummary{}, fmt.Errorf("sdk: auth client not initialized")
	}
	var user UserSummary
	if err := a.client.Do(ctx, http.MethodGet, routes.AuthMe, nil, &user); err != nil {
		return UserSummary{}, err
	}
	return user, nil
}
