package proxy

import (
	"context"

	"github.com/coreward/atomix/pkg/types"
)

// Executor runs a continuation. A caller-supplied implementation might
// post fn onto an application event loop, a worker pool, or simply call
// it inline.
type Executor func(fn func())

// threadTag marks a context as currently executing on a session/IO
// thread, so BlockingAware can detect a user callback dispatched from
// that same thread and reschedule it instead of risking a self-deadlock.
type threadTagKey struct{}

// MarkSessionThread returns a context flagged as running on a session/IO
// thread. The session and transport layers wrap their dispatch goroutines
// with this so BlockingAware can recognize them.
func MarkSessionThread(ctx context.Context) context.Context {
	return context.WithValue(ctx, threadTagKey{}, true)
}

func isSessionThread(ctx context.Context) bool {
	v, _ := ctx.Value(threadTagKey{}).(bool)
	return v
}

// BlockingAware is always applied. When a user callback is dispatched
// while executing on a thread tagged as a session/IO thread, it
// reschedules the continuation onto executor instead of running it
// inline, preventing a caller from deadlocking by waiting on a future
// whose completion requires that same thread.
type BlockingAware struct {
	inner    Proxy
	executor Executor
}

// NewBlockingAware wraps inner, rescheduling onto executor when needed.
// A nil executor runs continuations inline (the caller asserts it never
// blocks on the session thread itself).
func NewBlockingAware(inner Proxy, executor Executor) *BlockingAware {
	return &BlockingAware{inner: inner, executor: executor}
}

func (b *BlockingAware) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	return b.inner.Invoke(ctx, payload)
}

func (b *BlockingAware) Query(ctx context.Context, payload []byte, consistency types.ReadConsistency) ([]byte, error) {
	return b.inner.Query(ctx, payload, consistency)
}

func (b *BlockingAware) AddListener(l Listener) {
	if b.executor == nil {
		b.inner.AddListener(l)
		return
	}

	b.inner.AddListener(func(event []byte) {
		b.executor(func() { l(event) })
	})
}

// Dispatch runs fn as a continuation of an operation that completed on
// ctx's thread. If ctx is tagged as a session/IO thread, fn is scheduled
// on the executor instead of being run inline.
func (b *BlockingAware) Dispatch(ctx context.Context, fn func()) {
	if b.executor != nil && isSessionThread(ctx) {
		b.executor(fn)
		return
	}
	fn()
}
