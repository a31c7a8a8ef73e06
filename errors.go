package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError captures structured backend error metadata.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
	Fields    []FieldError
}

// FieldError represents a validation failure for a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e APIError) Error() string {
	if e.Code == "" {
		e.Code = "UNKNOWN"
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("%s (%d)", e.Code, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// TransportErrorKind distinguishes network-level failure modes.
type TransportErrorKind string

const (
	TransportErrorKindTimeout    TransportErrorKind = "timeout"
	TransportErrorKindCanceled   TransportErrorKind = "canceled"
	TransportErrorKindConnection TransportErrorKind = "connection"
)

// TransportError indicates the request never produced an HTTP response.
// It is surfaced immediately and never drives the refresh protocol.
type TransportError struct {
	Kind    TransportErrorKind
	Message string
	Cause   error
}

func (e TransportError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("transport %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e TransportError) Unwrap() error { return e.Cause }

// SessionExpiredError wraps the error that remained after a failed refresh.
// Credentials have already been cleared and the session-change event
// published by the time a caller observes this error.
type SessionExpiredError struct {
	Cause error
}

func (e SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired: %v", e.Cause)
}

func (e SessionExpiredError) Unwrap() error { return e.Cause }

// ConfigError reports invalid client configuration.
type ConfigError struct {
	Reason string
}

func (e ConfigError) Error() string {
	return "sdk: invalid configuration: " + e.Reason
}

func classifyTransportErrorKind(err error) TransportErrorKind {
	switch {
	case errors.Is(err, io.EOF):
		return TransportErrorKindConnection
	case strings.Contains(err.Error(), "context canceled"):
		return TransportErrorKindCanceled
	case strings.Contains(err.Error(), "deadline exceeded"),
		strings.Contains(err.Error(), "Timeout"):
		return TransportErrorKindTimeout
	default:
		return TransportErrorKindConnection
	}
}

// IsUnauthorized reports whether err is a 401 from the backend, after any
// refresh handling this layer already performed.
func IsUnauthorized(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsForbidden reports whether err is a 403 from the backend.
func IsForbidden(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden
}

// IsSessionExpired reports whether err resulted from an irrecoverable
// refresh failure. Callers should treat the actor as logged out.
func IsSessionExpired(err error) bool {
	var expired SessionExpiredError
	return errors.As(err, &expired)
}

// IsValidation reports whether err carries backend field errors for a
// submitted mutation. Field details are on the APIError itself.
func IsValidation(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && len(apiErr.Fields) > 0
}

// isCSRFRejection reports whether a 403 specifically indicates a
// missing/invalid CSRF token, which must invalidate the cached value.
func isCSRFRejection(apiErr APIError) bool {
	if apiErr.Status != http.StatusForbidden {
		return false
	}
	if strings.EqualFold(apiErr.Code, "csrf_failed") {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "csrf")
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	apiErr := APIError{Status: resp.StatusCode}
	if len(data) == 0 {
		apiErr.Message = resp.Status
		return apiErr
	}
	var payload struct {
		Error struct {
			Code    string       `json:"code"`
			Message string       `json:"message"`
			Status  int          `json:"status"`
			Fields  []FieldError `json:"fields"`
		} `json:"error"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = string(data)
		return apiErr
	}
	apiErr.Code = payload.Error.Code
	apiErr.Message = payload.Error.Message
	if payload.Error.Status != 0 {
		apiErr.Status = payload.Error.Status
	}
	apiErr.Fields = payload.Error.Fields
	apiErr.RequestID = payload.RequestID
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}
