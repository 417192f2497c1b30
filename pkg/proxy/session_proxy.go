package proxy

import (
	"context"
	"sync"

	"github.com/coreward/atomix/pkg/session"
	"github.com/coreward/atomix/pkg/types"
)

// SessionProxy is P0: the raw, session-bound proxy everything else wraps.
// It submits operations through a single session.Session and fans out
// nothing of its own — listener replay and recovery are the job of the
// adapters above it.
type SessionProxy struct {
	mu        sync.RWMutex
	s         *session.Session
	listeners []Listener
}

// NewSessionProxy wraps s.
func NewSessionProxy(s *session.Session) *SessionProxy {
	return &SessionProxy{s: s}
}

// Invoke submits payload through the underlying session.
func (p *SessionProxy) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	return p.s.Submit(ctx, payload)
}

// Query serves payload at the requested consistency through the
// underlying session.
func (p *SessionProxy) Query(ctx context.Context, payload []byte, consistency types.ReadConsistency) ([]byte, error) {
	return p.s.Query(ctx, payload, consistency)
}

// AddListener records l so a Recovering adapter above this proxy can
// replay it against a freshly opened session after recovery.
func (p *SessionProxy) AddListener(l Listener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
}

// Listeners returns a snapshot of registered listeners.
func (p *SessionProxy) Listeners() []Listener {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Listener, len(p.listeners))
	copy(out, p.listeners)
	return out
}
