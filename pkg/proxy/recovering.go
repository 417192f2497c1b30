package proxy

import (
	"context"
	"sync"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/log"
	"github.com/coreward/atomix/pkg/metrics"
	"github.com/coreward/atomix/pkg/types"
)

// RecoverableProxy is what Recovering needs from its inner proxy: the
// normal Proxy surface plus the ability to enumerate registered listeners
// so they can be replayed against a freshly opened session. SessionProxy
// satisfies it directly.
type RecoverableProxy interface {
	Proxy
	Listeners() []Listener
}

// Reopener produces a fresh proxy when the current one's session has
// expired. Supplied by the primitive service, which knows how to open a
// new session against the right partition.
type Reopener func() (RecoverableProxy, error)

// Recovering transparently opens a new session on SessionExpired and
// replays registered listeners against it. It exclusively owns the
// currently-active inner proxy and replaces it atomically under mu; any
// operation in flight at the moment of replacement surfaces
// OperationLost to the caller, leaving retry to the Retrying adapter
// above it.
type Recovering struct {
	mu     sync.RWMutex
	inner  RecoverableProxy
	reopen Reopener
}

// NewRecovering wraps inner, using reopen to replace it after expiry.
func NewRecovering(inner RecoverableProxy, reopen Reopener) *Recovering {
	return &Recovering{inner: inner, reopen: reopen}
}

func (r *Recovering) current() RecoverableProxy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inner
}

// Invoke submits payload through the current inner proxy. On
// SessionExpired it recovers by opening a fresh session and replaying
// listeners, then surfaces OperationLost for this call so the caller (or
// a Retrying adapter above) decides whether to retry.
func (r *Recovering) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	inner := r.current()
	resp, err := inner.Invoke(ctx, payload)
	return r.afterAttempt(inner, resp, err)
}

// Query serves payload through the current inner proxy, recovering on
// SessionExpired exactly as Invoke does. Reads are idempotent, but the
// session underneath still needs replacing before anything - read or
// write - can go through it again.
func (r *Recovering) Query(ctx context.Context, payload []byte, consistency types.ReadConsistency) ([]byte, error) {
	inner := r.current()
	resp, err := inner.Query(ctx, payload, consistency)
	return r.afterAttempt(inner, resp, err)
}

func (r *Recovering) afterAttempt(inner RecoverableProxy, resp []byte, err error) ([]byte, error) {
	if err == nil {
		return resp, nil
	}

	if !atomixerr.Is(err, atomixerr.SessionExpired) {
		return nil, err
	}

	if recErr := r.recover(inner); recErr != nil {
		return nil, recErr
	}

	return nil, atomixerr.New(atomixerr.OperationLost, err)
}

func (r *Recovering) recover(failed RecoverableProxy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inner != failed {
		// Another caller already recovered concurrently.
		return nil
	}

	fresh, err := r.reopen()
	if err != nil {
		return atomixerr.Newf(atomixerr.Unavailable, "recover session: %v", err)
	}

	for _, l := range failed.Listeners() {
		fresh.AddListener(l)
	}

	r.inner = fresh
	metrics.ProxyRecoveriesTotal.Inc()
	log.WithComponent("proxy").Info().Msg("session recovered after expiry")
	return nil
}

// AddListener registers l against the current inner proxy.
func (r *Recovering) AddListener(l Listener) {
	r.current().AddListener(l)
}
