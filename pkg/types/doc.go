/*
Package types defines the core data model shared across the coordination
runtime: nodes, cluster metadata, partitions, sessions, and the primitive
and consistency vocabulary the rest of the packages route on.

# Core Types

Node identity:

  - NodeID: opaque, totally-orderable node identifier
  - Node: (id, host, port, role), immutable after construction
  - ClusterMetadata: local node + bootstrap node set, fixed at build time

Partition topology:

  - PartitionID: dense 1-based index in [1, N]
  - PartitionMetadata: (id, replica set)
  - PartitionTopology: the full partition -> replica-set mapping

Session and primitive vocabulary:

  - SessionID, SessionState: client<->partition relationship lifecycle
  - ReadConsistency: SEQUENTIAL / LINEARIZABLE_LEASE / LINEARIZABLE
  - RecoveryStrategy: whether a proxy recovers from session expiry
  - PrimitiveType: the registered primitive kinds (map, lock, counter, leader-election)

# Design Patterns

Enumeration Pattern:

	All enums use typed string constants for safety and clarity:
	  type SessionState string
	  const (
	      SessionOpen      SessionState = "open"
	      SessionSuspended SessionState = "suspended"
	  )

# Thread Safety

These types carry no behavior beyond small, pure helpers (Endpoint,
NodeByID, SortedIDs, ByID, Len) and are safe to read concurrently once
constructed. The logic that interprets them - topology synthesis, session
tracking, primitive routing - lives in pkg/topology, pkg/partition,
pkg/session, and pkg/primitive, which own their own synchronization.

# Integration Points

This package integrates with:

  - pkg/topology: builds PartitionTopology from the bootstrap node set
  - pkg/partition: owns one Raft participant per local PartitionMetadata
  - pkg/session: tracks SessionID/SessionState per (client, partition)
  - pkg/proxy: passes ReadConsistency through its adapters; it does not
    read RecoveryStrategy (recovery is switched by proxy.Options)
  - pkg/primitive: routes by name to a PartitionID and builds PrimitiveType values
*/
package types
