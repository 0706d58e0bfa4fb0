// Package session defines the session provider boundary.
// The wallet gate depends only on the Provider interface so that auth can be
// swapped for a test double.
package session

import (
	"context"
	"time"
)

// Session is a read-only snapshot of an authenticated identity.
type Session struct {
	UserID      string
	Email       string
	Role        string
	AccessToken string
	ExpiresAt   time.Time
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Unsubscribe releases a session watch. It is safe to call more than once.
type Unsubscribe func()

// Provider supplies the current session and a stream of session changes.
// Watch callbacks receive nil when the session ends (sign-out or expiry).
type Provider interface {
	// Current returns the current session, or nil when unauthenticated.
	Current(ctx context.Context) (*Session, error)
	// Watch registers a callback for session changes. The returned
	// Unsubscribe must be called to release the listener.
	Watch(cb func(*Session)) (Unsubscribe, error)
}
