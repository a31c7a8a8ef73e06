package sdk

import "github.com/google/uuid"

// UserSummary is the subset of the user profile the session protocol returns.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username,omitempty"`
	Display  string    `json:"display,omitempty"`
}

// Flow describes a pending step of a multi-stage sign-in (e.g. awaiting a
// login code or a second factor).
type Flow struct {
	ID        string   `json:"id"`
	Providers []string `json:"providers,omitempty"`
	IsPending bool     `json:"is_pending,omitempty"`
}

// AuthData is the data portion of a session-protocol response.
type AuthData struct {
	User  *UserSummary `json:"user,omitempty"`
	Flows []Flow       `json:"flows,omitempty"`
}

// AuthMeta carries the protocol-level flags this layer inspects on every
// session-protocol response.
type AuthMeta struct {
	IsAuthenticated bool   `json:"is_authenticated"`
	SessionToken    string `json:"session_token,omitempty"`
	AccessToken     string `json:"access_token,omitempty"`
	RefreshToken    string `json:"refresh_token,omitempty"`
}

// AuthResponse is the normalized result of every session-protocol operation.
type AuthResponse struct {
	Status int      `json:"status"`
	Data   AuthData `json:"data"`
	Meta   AuthMeta `json:"meta"`
}

// SessionState is the authentication state derived from a session-protocol
// response. It is only ever produced from backend responses, never assembled
// by callers.
type SessionState struct {
	Authenticated bool
	User          *UserSummary
	PendingFlow   string
}

// State derives the session state from the response payload.
func (r AuthResponse) State() SessionState {
	state := SessionState{
		Authenticated: r.Meta.IsAuthenticated,
		User:          r.Data.User,
	}
	for _, flow := range r.Data.Flows {
		if flow.IsPending {
			state.PendingFlow = flow.ID
			break
		}
	}
	return state
}
