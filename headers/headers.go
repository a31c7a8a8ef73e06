// Package headers defines HTTP header and cookie constants used across the
// CampHub platform. This is the single source of truth for names used in
// API requests/responses.
package headers

const (
	// RequestID is the header for request correlation / idempotency.
	RequestID = "X-CampHub-Request-Id"

	// CSRFToken carries the request-forgery-protection token on mutating requests.
	CSRFToken = "X-CSRFToken" //nolint:gosec // This is a header name, not a credential

	// SessionToken carries the ephemeral session-protocol handle when the
	// session cookie is unavailable.
	SessionToken = "X-Session-Token" //nolint:gosec // This is a header name, not a credential
)

// Cookie names consumed by the client.
const (
	// CSRFCookie is the same-site cookie holding the CSRF token.
	CSRFCookie = "csrftoken"

	// CSRFCookieSecure is the __Secure- prefixed variant set on HTTPS origins.
	CSRFCookieSecure = "__Secure-csrftoken"

	// SessionCookie is the session-protocol cookie set by the backend.
	SessionCookie = "sessionid"
)
