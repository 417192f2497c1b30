package proxy

import (
	"context"

	"github.com/coreward/atomix/pkg/types"
)

// Listener receives events published against a primitive's session.
type Listener func(event []byte)

// Proxy is the uniform interface every layer of the stack implements and
// wraps. Invoke submits an opaque operation payload and returns its
// opaque result. Query serves a read-only payload at the requested
// consistency without going through the replicated log a write commits
// to.
type Proxy interface {
	Invoke(ctx context.Context, payload []byte) ([]byte, error)
	Query(ctx context.Context, payload []byte, consistency types.ReadConsistency) ([]byte, error)
	AddListener(l Listener)
}
