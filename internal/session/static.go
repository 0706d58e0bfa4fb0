package session

import (
	"context"
	"time"
)

// StaticProvider adapts an identity that was already authenticated upstream,
// such as by the HTTP auth middleware, to the Provider interface. The session
// never changes for the provider's lifetime, so Watch never fires; it exists
// to satisfy gates whose lifecycle is bounded by a single request.
type StaticProvider struct {
	sess *Session
}

// NewStaticProvider creates a provider pinned to one session. A nil session
// means unauthenticated.
func NewStaticProvider(sess *Session) *StaticProvider {
	return &StaticProvider{sess: sess}
}

// Current returns the pinned session, or nil once it has expired.
func (p *StaticProvider) Current(ctx context.Context) (*Session, error) {
	if p.sess == nil || p.sess.Expired(time.Now()) {
		return nil, nil
	}
	return p.sess, nil
}

// Watch registers a callback that will never fire.
func (p *StaticProvider) Watch(cb func(*Session)) (Unsubscribe, error) {
	return func() {}, nil
}
