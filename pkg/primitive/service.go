package primitive

import (
	"context"
	"encoding/json"
	"hash/fnv"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/metrics"
	"github.com/coreward/atomix/pkg/partition"
	"github.com/coreward/atomix/pkg/proxy"
	"github.com/coreward/atomix/pkg/session"
	"github.com/coreward/atomix/pkg/types"
)

// partitionOf deterministically maps name to a partition in [1, n]. The
// mapping never changes for the life of the cluster because n (the
// partition count) is immutable post-bootstrap: a given name always
// resolves to the same partition.
func partitionOf(name string, n int) types.PartitionID {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return types.PartitionID(int(h.Sum32()%uint32(n)) + 1)
}

// Config configures the primitive service.
type Config struct {
	Topology   types.PartitionTopology
	Partitions *partition.Service
	Sessions   *session.Manager
	Registry   *Registry

	ClientID   string
	MaxRetries int
	Executor   proxy.Executor

	// Remote answers List's fan-out for a partition the local node does
	// not host, returning the primitive names of type t held by that
	// partition's replica set. Wired by the composition root to reach
	// the communication fabric; nil means only locally-hosted partitions
	// are listed.
	Remote func(ctx context.Context, partitionID types.PartitionID, t types.PrimitiveType) ([]string, error)
}

func (c *Config) setDefaults() {
	if c.Registry == nil {
		c.Registry = NewDefaultRegistry()
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Service is the primitive service: it builds named, typed primitive
// handles and lists the names live for a type, routing both by
// partitionOf(name).
type Service struct {
	cfg Config
}

// New creates a primitive service. cfg.Topology.Len() fixes the partition
// count used for routing.
func New(cfg Config) *Service {
	cfg.setDefaults()
	return &Service{cfg: cfg}
}

// Build resolves name to its partition, opens (or reuses) a session
// against it, and returns a fully assembled proxy: Delegating wrapping
// BlockingAware wrapping an optional Retrying wrapping an optional
// Recovering wrapping the SessionProxy itself.
func (s *Service) Build(name string, t types.PrimitiveType) (proxy.Proxy, error) {
	n := s.cfg.Topology.Len()
	if n == 0 {
		return nil, atomixerr.New(atomixerr.ConfigurationInvalid, nil)
	}
	pid := partitionOf(name, n)

	sess, err := s.cfg.Sessions.Open(s.cfg.ClientID, pid)
	if err != nil {
		return nil, err
	}

	p0 := proxy.NewSessionProxy(sess)
	built := proxy.Build(p0, proxy.Options{
		Recovery: proxy.RecoveryOptions{
			Enabled: true,
			Reopen: func() (proxy.RecoverableProxy, error) {
				fresh, err := s.cfg.Sessions.Open(s.cfg.ClientID, pid)
				if err != nil {
					return nil, err
				}
				return proxy.NewSessionProxy(fresh), nil
			},
		},
		MaxRetries: s.cfg.MaxRetries,
		Executor:   s.cfg.Executor,
	})

	metrics.PrimitivesTotal.WithLabelValues(string(t)).Inc()
	return &typedInvoker{proxy: built, typ: t, name: name}, nil
}

// typedInvoker wraps a built proxy, marshaling operations as Envelopes
// addressed to (typ, name) before handing them to the proxy stack, and
// observing per-type operation latency.
type typedInvoker struct {
	proxy proxy.Proxy
	typ   types.PrimitiveType
	name  string
}

func (t *typedInvoker) Invoke(ctx context.Context, op []byte) ([]byte, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ProxyOperationDuration, string(t.typ))

	env := Envelope{Type: t.typ, Name: t.name, Op: op}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.ApplicationError, "marshal envelope: %v", err)
	}
	return t.proxy.Invoke(ctx, data)
}

// Query marshals op as an Envelope addressed to this primitive, exactly
// as Invoke does, and serves it read-only at consistency, bypassing the
// session's Command sequencing since reads need neither ordering nor
// dedup against retries.
func (t *typedInvoker) Query(ctx context.Context, op []byte, consistency types.ReadConsistency) ([]byte, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ProxyOperationDuration, string(t.typ))

	env := Envelope{Type: t.typ, Name: t.name, Op: op}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.ApplicationError, "marshal envelope: %v", err)
	}
	return t.proxy.Query(ctx, data, consistency)
}

func (t *typedInvoker) AddListener(l proxy.Listener) {
	t.proxy.AddListener(l)
}

// List fans out over every partition in the topology and unions the
// names of primitives of type t held anywhere in the cluster:
// locally-hosted partitions are read directly off their
// state machine, and partitions the local node does not host are
// reached through Config.Remote. A partition that cannot be reached
// (Remote unset, or the call fails) is simply missing from the result
// rather than failing the whole listing.
func (s *Service) List(ctx context.Context, t types.PrimitiveType) []string {
	seen := make(map[string]struct{})
	for _, pm := range s.cfg.Topology.Partitions {
		if h, ok := s.cfg.Partitions.Partition(pm.ID); ok && h.IsMember() {
			if m, ok := h.StateMachine().(*Machine); ok {
				for _, name := range m.Names(t) {
					seen[name] = struct{}{}
				}
			}
			continue
		}

		if s.cfg.Remote == nil {
			continue
		}
		names, err := s.cfg.Remote(ctx, pm.ID, t)
		if err != nil {
			continue
		}
		for _, name := range names {
			seen[name] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	return out
}
