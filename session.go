package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/camphub/camphub-go/headers"
	"github.com/camphub/camphub-go/routes"
)

// SessionClient implements the cookie-session identity protocol, used for
// social and alternate sign-in flows. It runs on a parallel channel to the
// bearer pipeline: a 401 here means "anonymous", never "refresh the access
// token", so its calls bypass the refresh protocol entirely.
type SessionClient struct {
	client *Client

	mu            sync.Mutex
	authenticated bool
}

// LoginRequest carries username/password credentials for the session protocol.
type LoginRequest struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// Validate checks that required fields are set.
func (r LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" && strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("email or username is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// SignupRequest creates a new account. Works for fully anonymous actors.
type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// Validate checks that required fields are set.
func (r SignupRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// ProviderTokenRequest completes a provider sign-in with a token the
// provider's own SDK obtained client-side.
type ProviderTokenRequest struct {
	Provider string `json:"provider"`
	Process  string `json:"process"`
	Token    struct {
		ClientID    string `json:"client_id"`
		IDToken     string `json:"id_token,omitempty"`
		AccessToken string `json:"access_token,omitempty"`
	} `json:"token"`
}

// Validate checks that required fields are set.
func (r ProviderTokenRequest) Validate() error {
	if strings.TrimSpace(r.Provider) == "" {
		return fmt.Errorf("provider is required")
	}
	if r.Token.IDToken == "" && r.Token.AccessToken == "" {
		return fmt.Errorf("provider token is required")
	}
	return nil
}

// CurrentSession queries the session state. Usable by a fully anonymous
// actor before any CSRF token exists; no CSRF header is attached.
func (s *SessionClient) CurrentSession(ctx context.Context) (AuthResponse, error) {
	return s.roundTrip(ctx, http.MethodGet, routes.Session, nil)
}

// Login authenticates with credentials on the session protocol.
func (s *SessionClient) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return AuthResponse{}, fmt.Errorf("sdk: %w", err)
	}
	return s.roundTrip(ctx, http.MethodPost, routes.SessionLogin, req)
}

// Signup creates an account and, depending on backend policy, signs the
// actor in or leaves a pending verification flow.
func (s *SessionClient) Signup(ctx context.Context, req SignupRequest) (AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return AuthResponse{}, fmt.Errorf("sdk: %w", err)
	}
	return s.roundTrip(ctx, http.MethodPost, routes.SessionSignup, req)
}

// Logout ends the session. The backend answers with an anonymous session
// payload; local credentials are cleared as part of the transition.
func (s *SessionClient) Logout(ctx context.Context) (AuthResponse, error) {
	return s.roundTrip(ctx, http.MethodDelete, routes.Session, nil)
}

// RequestLoginCode asks the backend to email a one-time login code.
func (s *SessionClient) RequestLoginCode(ctx context.Context, email string) (AuthResponse, error) {
	if strings.TrimSpace(email) == "" {
		return AuthResponse{}, fmt.Errorf("sdk: email is required")
	}
	payload := struct {
		Email string `json:"email"`
	}{Email: email}
	return s.roundTrip(ctx, http.MethodPost, routes.SessionLoginCode, payload)
}

// ConfirmLoginCode completes a pending login-code flow.
func (s *SessionClient) ConfirmLoginCode(ctx context.Context, code string) (AuthResponse, error) {
	if strings.TrimSpace(code) == "" {
		return AuthResponse{}, fmt.Errorf("sdk: code is required")
	}
	payload := struct {
		Code string `json:"code"`
	}{Code: code}
	return s.roundTrip(ctx, http.MethodPost, routes.SessionLoginCodeConfirm, payload)
}

// ProviderToken completes a provider sign-in using a provider-issued token.
func (s *SessionClient) ProviderToken(ctx context.Context, req ProviderTokenRequest) (AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return AuthResponse{}, fmt.Errorf("sdk: %w", err)
	}
	if req.Process == "" {
		req.Process = "login"
	}
	return s.roundTrip(ctx, http.MethodPost, routes.ProviderToken, req)
}

// roundTrip performs one session-protocol call. Every call attaches the
// CSRF token except the anonymous-safe session query and signup; the cached
// session handle rides along when present. Statuses 401 and 410 are part of
// the protocol envelope, not pipeline errors.
func (s *SessionClient) roundTrip(ctx context.Context, method, path string, payload any) (AuthResponse, error) {
	req, err := s.client.newJSONRequest(ctx, method, path, payload)
	if err != nil {
		return AuthResponse{}, err
	}
	if s.client.userAgent != "" {
		req.Header.Set("User-Agent", s.client.userAgent)
	}
	if tok := s.client.creds.SessionToken(); tok != "" {
		req.Header.Set(headers.SessionToken, tok)
	}
	if s.needsCSRF(method, path) {
		token, _ := s.client.csrf.Resolve(ctx)
		if token != "" {
			req.Header.Set(headers.CSRFToken, token)
		}
	}

	resp, err := s.client.transport(req)
	if err != nil {
		return AuthResponse{}, err
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode < 400,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusGone:
		// Protocol envelope statuses, handled below.
	default:
		apiErr := decodeAPIError(resp)
		var typed APIError
		if errors.As(apiErr, &typed) && isCSRFRejection(typed) {
			s.client.csrf.Invalidate()
		}
		return AuthResponse{}, apiErr
	}

	var out AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return AuthResponse{}, err
	}
	if out.Status == 0 {
		out.Status = resp.StatusCode
	}
	s.apply(&out)
	return out, nil
}

func (s *SessionClient) needsCSRF(method, path string) bool {
	if !isMutating(method) && path == routes.Session {
		return false
	}
	if path == routes.SessionSignup {
		return false
	}
	return true
}

// apply inspects every session-protocol response for the signals this layer
// acts on: session invalidation, a fresh session handle, bearer tokens
// minted alongside the session, and authentication-state transitions.
func (s *SessionClient) apply(resp *AuthResponse) {
	if resp.Status == http.StatusGone {
		_ = s.client.creds.SetSessionToken("")
	}
	if resp.Meta.SessionToken != "" {
		_ = s.client.creds.SetSessionToken(resp.Meta.SessionToken)
	}
	if resp.Meta.IsAuthenticated && resp.Meta.AccessToken != "" {
		_ = s.client.creds.SetTokens(TokenPair{
			Access:  resp.Meta.AccessToken,
			Refresh: resp.Meta.RefreshToken,
		})
	}

	s.mu.Lock()
	was := s.authenticated
	s.authenticated = resp.Meta.IsAuthenticated
	s.mu.Unlock()

	switch {
	case resp.Meta.IsAuthenticated && !was:
		s.client.logger.Info().Msg("session authenticated")
		s.client.events.publish(SessionEvent{
			Kind:     SessionEventAuthenticated,
			State:    resp.State(),
			Response: resp,
		})
	case !resp.Meta.IsAuthenticated && was:
		// Leaving the authenticated state invalidates bearer credentials
		// too; a logged-out actor must not retain a usable token pair.
		_ = s.client.creds.Clear()
		if resp.Meta.SessionToken != "" {
			// Keep the anonymous session handle issued with the logout.
			_ = s.client.creds.SetSessionToken(resp.Meta.SessionToken)
		}
		s.client.logger.Info().Msg("session ended")
		s.client.events.publish(SessionEvent{
			Kind:     SessionEventLoggedOut,
			State:    resp.State(),
			Response: resp,
		})
	}
}

// setAuthenticated synchronizes the tracked state when a transition is
// detected outside the session protocol (refresh failure).
func (s *SessionClient) setAuthenticated(v bool) {
	s.mu.Lock()
	s.authenticated = v
	s.mu.Unlock()
}
