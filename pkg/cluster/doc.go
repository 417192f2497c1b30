/*
Package cluster tracks cluster membership: the bootstrap node set, per-node
liveness, and local node identity.

Membership is copy-on-write: readers call Members, Node or Bootstrap and observe a
consistent view without locking against concurrent updates. Writers
(UpdateLiveness, in response to transport-level failure detection) replace
the whole snapshot atomically.
*/
package cluster
