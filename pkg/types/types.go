package types

import (
	"net"
	"sort"
	"strconv"
)

// NodeID is an opaque, totally-orderable identifier for a cluster node.
type NodeID string

// NodeRole distinguishes how a node participates in the cluster.
type NodeRole string

const (
	NodeRoleMember NodeRole = "member"
	NodeRoleClient NodeRole = "client"
)

// Node is a cluster member's identity. Immutable after construction.
type Node struct {
	ID   NodeID
	Host string
	Port int
	Role NodeRole
}

// Endpoint returns the host:port pair the transport dials to reach this node.
func (n Node) Endpoint() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// ClusterMetadata is the local node plus the bootstrap node set, fixed at build time.
type ClusterMetadata struct {
	LocalNode      Node
	BootstrapNodes []Node
}

// NodeByID returns the bootstrap node with the given id, if present.
func (m ClusterMetadata) NodeByID(id NodeID) (Node, bool) {
	for _, n := range m.BootstrapNodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// SortedIDs returns the bootstrap node ids in ascending order.
func (m ClusterMetadata) SortedIDs() []NodeID {
	ids := make([]NodeID, len(m.BootstrapNodes))
	for i, n := range m.BootstrapNodes {
		ids[i] = n.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PartitionID is a dense 1-based partition index in [1, N].
type PartitionID int

// PartitionMetadata is the replica set hosting one partition.
type PartitionMetadata struct {
	ID      PartitionID
	Members []NodeID
}

// PartitionTopology is the full partition -> replica-set mapping for a cluster.
type PartitionTopology struct {
	Partitions []PartitionMetadata
}

// ByID returns the partition metadata for id, if present.
func (t PartitionTopology) ByID(id PartitionID) (PartitionMetadata, bool) {
	for _, p := range t.Partitions {
		if p.ID == id {
			return p, true
		}
	}
	return PartitionMetadata{}, false
}

// Len returns the partition count N.
func (t PartitionTopology) Len() int {
	return len(t.Partitions)
}

// ReadConsistency is the per-proxy read consistency level honored by the
// Raft session manager.
type ReadConsistency string

const (
	Sequential        ReadConsistency = "sequential"
	LinearizableLease ReadConsistency = "linearizable-lease"
	Linearizable      ReadConsistency = "linearizable"
)

// RecoveryStrategy names whether a proxy recovers from session expiry. No
// package reads it: pkg/proxy's Build installs a Recovering adapter when
// Options.Recovery.Enabled is set.
type RecoveryStrategy string

const (
	RecoveryNone    RecoveryStrategy = "none"
	RecoveryRecover RecoveryStrategy = "recover"
)

// SessionID is a monotonically increasing id assigned by a partition's
// leader when a session is opened.
type SessionID uint64

// SessionState is a session's lifecycle state.
type SessionState string

const (
	SessionOpening   SessionState = "opening"
	SessionOpen      SessionState = "open"
	SessionSuspended SessionState = "suspended"
	SessionExpired   SessionState = "expired"
	SessionClosed    SessionState = "closed"
)

// PrimitiveType names a registered primitive factory (map, lock, counter, ...).
type PrimitiveType string

const (
	PrimitiveTypeMap            PrimitiveType = "map"
	PrimitiveTypeLock           PrimitiveType = "lock"
	PrimitiveTypeCounter        PrimitiveType = "counter"
	PrimitiveTypeLeaderElection PrimitiveType = "leader-election"
)
