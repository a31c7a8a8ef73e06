package sdk

import "sync"

// SessionEventKind labels an authentication-state transition.
type SessionEventKind string

const (
	// SessionEventAuthenticated fires when a session-protocol response
	// reports the actor is authenticated (login, signup, provider sign-in).
	SessionEventAuthenticated SessionEventKind = "authenticated"

	// SessionEventLoggedOut fires when the actor transitions from
	// authenticated to anonymous via a session-protocol response.
	SessionEventLoggedOut SessionEventKind = "logged_out"

	// SessionEventExpired fires when the refresh protocol fails
	// irrecoverably and credentials are cleared.
	SessionEventExpired SessionEventKind = "expired"
)

// SessionEvent carries the full session-protocol payload to subscribers so
// independent consumers observe transitions without polling.
type SessionEvent struct {
	Kind     SessionEventKind
	State    SessionState
	Response *AuthResponse
}

// sessionBus is a minimal publish/subscribe channel for session events.
// Handlers run on the publishing goroutine; subscribers that need to do
// real work should hand off to their own goroutine.
type sessionBus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(SessionEvent)
}

func newSessionBus() *sessionBus {
	return &sessionBus{subs: make(map[int]func(SessionEvent))}
}

func (b *sessionBus) subscribe(fn func(SessionEvent)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *sessionBus) publish(ev SessionEvent) {
	b.mu.Lock()
	handlers := make([]func(SessionEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

// OnSessionChange registers fn for every authentication-state transition
// (login, logout, expiry-detected). The returned function unsubscribes.
func (c *Client) OnSessionChange(fn func(SessionEvent)) func() {
	return c.events.subscribe(fn)
}
