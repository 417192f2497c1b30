/*
Package session implements the Raft session manager: per client id and
per partition, it maintains a pool of sessions and is responsible for
leader tracking, keepalives, command sequencing, and read consistency.

A Session is a logical client<->partition relationship. Its lifecycle is
OPENING -> OPEN -> (SUSPENDED | EXPIRED | CLOSED); SUSPENDED may return to
OPEN on leader rediscovery, EXPIRED is terminal.

Manager submits commands through a PartitionClient, an interface satisfied
by both a local pkg/partition.Handle (for partitions hosted on this node)
and a remote stub dialed over pkg/comm (for partitions hosted elsewhere).
Sessions never know which kind they are talking to.

Ordering is enforced client-side by serializing Submit calls per session
behind a mutex and tagging each command with a strictly increasing
sequence number; the state machine on the other end uses that sequence to
detect and discard duplicate replays, giving exactly-once apply semantics
for retried commands.
*/
package session
