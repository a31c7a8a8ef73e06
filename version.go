package sdk

// Version is the published SDK version.
// 0.4.0: Breaking - session-protocol errors now decode into AuthResponse for
// 401/410 statuses instead of surfacing APIError; add ProviderRedirectForm.
// 0.3.0: Add single-flight CSRF resolution with cookie-first strategy and
// cache invalidation on CSRF-rejected 403s.
// 0.2.0: Breaking - refresh coordination moved behind Client.Do; requests are
// retried at most once after a transparent token refresh.
const Version = "0.4.0"
