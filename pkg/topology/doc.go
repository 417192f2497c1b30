/*
Package topology derives a partition -> replica-set mapping from a set of
bootstrap cluster nodes.

# Algorithm

Given bootstrap nodes B (size b), partition count N, and replication
factor (partition size) R:

  - If an explicit topology is supplied to Build, it is used verbatim.
  - Otherwise N defaults to b when N is 0, and R defaults to min(b, 3)
    when R is 0.
  - B is sorted by NodeID ascending into a sequence S.
  - Partition i+1 (for i in [0, N)) gets replica set
    { S[(i+j) mod b] : j in [0, R) }, which is R distinct nodes for any
    N because R <= b.

This sliding-window assignment is deterministic and coordination-free:
every node derives the same topology from the same (B, N, R) without
talking to any other node. Build rejects N <= 0 and R outside [1, b]
with ConfigurationInvalid before assigning anything.

# Properties

  - Determinism: same (B, N, R) always yields the identical topology.
  - Coverage: when N >= b, every node appears in at least one partition.
  - Balance: when N == b, every node appears in exactly R partitions.
*/
package topology
