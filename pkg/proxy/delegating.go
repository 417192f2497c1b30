package proxy

import (
	"context"

	"github.com/coreward/atomix/pkg/types"
)

// Delegating is always outermost. It gives the caller a stable handle:
// the identity of a Delegating proxy never changes even though Recovering
// may replace everything beneath it.
type Delegating struct {
	inner Proxy
}

// NewDelegating wraps inner as the final, caller-facing proxy.
func NewDelegating(inner Proxy) *Delegating {
	return &Delegating{inner: inner}
}

func (d *Delegating) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	return d.inner.Invoke(ctx, payload)
}

func (d *Delegating) Query(ctx context.Context, payload []byte, consistency types.ReadConsistency) ([]byte, error) {
	return d.inner.Query(ctx, payload, consistency)
}

func (d *Delegating) AddListener(l Listener) {
	d.inner.AddListener(l)
}
