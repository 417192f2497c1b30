/*
Package events implements the cluster event fabric: cluster-wide topic
publish/subscribe layered on pkg/comm.

Publish delivers to local subscribers immediately and fans the same
event out to every other known member's event fabric over pkg/comm, best
effort — a member that cannot be reached simply misses the event. A full
subscriber buffer drops the event rather than block the publisher.
*/
package events
