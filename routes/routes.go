// Package routes provides shared API route constants used by both
// the API server and dashboard clients to prevent path mismatches.
package routes

// API route paths - these constants are shared between server and clients
// to ensure compile-time safety and prevent endpoint mismatches.
const (
	// TokenObtain exchanges user credentials for an access/refresh token pair.
	TokenObtain = "/auth/token" // #nosec G101 -- route path, not a credential

	// TokenRefresh swaps a refresh token for a new access token.
	TokenRefresh = "/auth/token/refresh" // #nosec G101 -- route path, not a credential

	// CSRF issues a request-forgery-protection token and sets the CSRF cookie.
	CSRF = "/auth/csrf"

	// AuthMe returns the current authenticated user's profile.
	AuthMe = "/auth/me"

	// SessionBase is the cookie-session identity protocol base path.
	SessionBase = "/auth/browser/v1"

	// Session returns the current session state. Usable by anonymous actors.
	Session = SessionBase + "/auth/session"

	// SessionLogin authenticates with username/password on the session protocol.
	SessionLogin = SessionBase + "/auth/login"

	// SessionSignup creates an account. Must work for anonymous actors.
	SessionSignup = SessionBase + "/auth/signup"

	// SessionLoginCode requests a one-time login code by email.
	SessionLoginCode = SessionBase + "/auth/code/request"

	// SessionLoginCodeConfirm confirms a previously requested login code.
	SessionLoginCodeConfirm = SessionBase + "/auth/code/confirm"

	// ProviderRedirect is the form-POST target that hands off to a
	// third-party identity provider via full-page navigation.
	ProviderRedirect = SessionBase + "/auth/provider/redirect"

	// ProviderToken completes a provider sign-in using a provider-issued token.
	ProviderToken = SessionBase + "/auth/provider/token" // #nosec G101 -- route path, not a credential
)
