/*
Package partition implements the partition service: it owns a
collection of partition handles, one per types.PartitionMetadata in a
types.PartitionTopology, and is responsible for their bring-up and teardown.

Each handle encapsulates a Raft participant when the local node is a member
of the partition's replica set, or a pure client view otherwise. The Raft
participant's log, stable store and snapshot store live under
<dataDir>/partitions/<id>/: two BoltDB files (raft-log.db, raft-stable.db)
and a file snapshot store, one set per partition rather than one per node.

State machine semantics are intentionally generic: FSM applies opaque
command bytes to a StateMachine, and persists opaque snapshot bytes. The
partition service defines where state lives, never what it means — that is
the concern of pkg/primitive, which supplies the StateMachine implementation
for each partition at construction time.

Open opens every handle in parallel and waits for all of them; a failure in
any handle closes the handles that did open, in reverse order, before the
error surfaces, matching the all-or-nothing open() semantics at the
composition root (pkg/atomix) one level up.
*/
package partition
