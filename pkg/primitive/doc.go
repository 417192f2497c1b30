/*
Package primitive implements the primitive service and the distributed
data structures it builds: maps, locks, counters, and leader elections.

Routing is by name: partitionOf(name) = hash(name) mod N + 1, so a given
name always resolves to the same partition for the life of the cluster.
Because many differently-named (and differently-typed) primitives can
route to the same partition, each partition's replicated state is a single
Machine that demultiplexes by name, lazily constructing the right Instance
from the Registry the first time a name is addressed.

Machine also owns session-sequence deduplication: every command committed
to a partition's log is a session.Command envelope, and Machine only
applies a given (session, sequence) pair once, replaying the cached
response for a retried duplicate. This is what makes retries issued by the
proxy stack's Retrying adapter safe to apply exactly once.
*/
package primitive
