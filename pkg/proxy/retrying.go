package proxy

import (
	"context"
	"time"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/metrics"
	"github.com/coreward/atomix/pkg/types"
)

// Retrying retries transient errors (Unavailable, LeaderUnknown,
// OperationLost) up to maxRetries times with a fixed delay between
// attempts. Non-transient errors pass through unchanged on the first
// attempt.
type Retrying struct {
	inner      Proxy
	maxRetries int
	retryDelay time.Duration
}

// NewRetrying wraps inner with up to maxRetries attempts, retryDelay
// apart.
func NewRetrying(inner Proxy, maxRetries int, retryDelay time.Duration) *Retrying {
	return &Retrying{inner: inner, maxRetries: maxRetries, retryDelay: retryDelay}
}

func (r *Retrying) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	return r.retry(ctx, func() ([]byte, error) { return r.inner.Invoke(ctx, payload) })
}

func (r *Retrying) Query(ctx context.Context, payload []byte, consistency types.ReadConsistency) ([]byte, error) {
	return r.retry(ctx, func() ([]byte, error) { return r.inner.Query(ctx, payload, consistency) })
}

// retry runs attempt up to maxRetries+1 times, retrying only transient
// errors (isRetryable) with retryDelay between attempts. Both Invoke and
// Query share this loop; only what they call through to differs.
func (r *Retrying) retry(ctx context.Context, attempt func() ([]byte, error)) ([]byte, error) {
	var lastErr error
	for i := 0; i <= r.maxRetries; i++ {
		resp, err := attempt()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if i == r.maxRetries {
			break
		}

		metrics.ProxyRetriesTotal.WithLabelValues(string(kindOf(err))).Inc()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}
	return nil, lastErr
}

func (r *Retrying) AddListener(l Listener) {
	r.inner.AddListener(l)
}

func isRetryable(err error) bool {
	return atomixerr.Is(err, atomixerr.Unavailable) ||
		atomixerr.Is(err, atomixerr.LeaderUnknown) ||
		atomixerr.Is(err, atomixerr.OperationLost)
}

func kindOf(err error) atomixerr.Kind {
	k, _ := atomixerr.KindOf(err)
	return k
}
