package cluster

import (
	"sync/atomic"
	"time"

	"github.com/coreward/atomix/pkg/log"
	"github.com/coreward/atomix/pkg/types"
	"github.com/rs/zerolog"
)

// Liveness is a node's last-observed reachability.
type Liveness struct {
	Node          types.Node
	Reachable     bool
	LastHeartbeat time.Time
}

// snapshot is the immutable view swapped atomically by Membership.
type snapshot struct {
	local   types.Node
	members map[types.NodeID]Liveness
}

// Membership is the cluster membership service (C2). It exposes the
// local node identity and a copy-on-write view of the bootstrap node set
// and per-node liveness.
type Membership struct {
	value  atomic.Pointer[snapshot]
	logger zerolog.Logger
	open   atomic.Bool
}

// New builds a Membership service seeded with the given cluster metadata.
// Every bootstrap node starts reachable; liveness is only revised once
// Open is called and the transport begins reporting failures.
func New(meta types.ClusterMetadata) *Membership {
	members := make(map[types.NodeID]Liveness, len(meta.BootstrapNodes))
	now := time.Now()
	for _, n := range meta.BootstrapNodes {
		members[n.ID] = Liveness{Node: n, Reachable: true, LastHeartbeat: now}
	}
	m := &Membership{logger: log.WithComponent("cluster")}
	m.value.Store(&snapshot{local: meta.LocalNode, members: members})
	return m
}

// Open marks the membership service ready. It has no I/O of its own; it
// exists so the composition root can sequence it in the C2 open step.
func (m *Membership) Open() error {
	m.open.Store(true)
	m.logger.Info().Str("node_id", string(m.Local().ID)).Msg("membership open")
	return nil
}

// Close marks the membership service closed. Idempotent.
func (m *Membership) Close() error {
	m.open.Store(false)
	return nil
}

// IsOpen reports whether Open has completed without a following Close.
func (m *Membership) IsOpen() bool {
	return m.open.Load()
}

// Local returns the local node identity.
func (m *Membership) Local() types.Node {
	return m.value.Load().local
}

// Members returns a stable snapshot of every known node's liveness.
func (m *Membership) Members() []Liveness {
	s := m.value.Load()
	out := make([]Liveness, 0, len(s.members))
	for _, l := range s.members {
		out = append(out, l)
	}
	return out
}

// Node returns the known node for id, if any.
func (m *Membership) Node(id types.NodeID) (types.Node, bool) {
	s := m.value.Load()
	l, ok := s.members[id]
	return l.Node, ok
}

// Bootstrap returns the bootstrap node set in no particular order, for
// handing to the topology builder (which sorts it).
func (m *Membership) Bootstrap() []types.Node {
	s := m.value.Load()
	out := make([]types.Node, 0, len(s.members))
	for _, l := range s.members {
		out = append(out, l.Node)
	}
	return out
}

// UpdateLiveness records a new reachability observation for id. It
// replaces the whole snapshot so concurrent readers never observe a
// partially-updated member map.
func (m *Membership) UpdateLiveness(id types.NodeID, reachable bool) {
	old := m.value.Load()
	node, ok := old.members[id]
	if !ok {
		return
	}
	next := &snapshot{local: old.local, members: make(map[types.NodeID]Liveness, len(old.members))}
	for k, v := range old.members {
		next.members[k] = v
	}
	node.Reachable = reachable
	node.LastHeartbeat = time.Now()
	next.members[id] = node
	m.value.Store(next)

	if !reachable {
		m.logger.Warn().Str("node_id", string(id)).Msg("node unreachable")
	}
}
