/*
Package comm implements the cluster communication fabric: a typed
request-reply and direct-message layer over the raw transport
(pkg/transport) and membership view (pkg/cluster).

Every call names a target node and a service; Fabric resolves the node
to an address via membership, wraps the payload in an Envelope naming
the service, and round-trips it through a single shared transport
connection. On the receiving side Fabric is itself the transport.Handler:
it unwraps the Envelope and dispatches to whichever local handler
registered under that service name, the same demultiplexing pattern
pkg/primitive's Machine uses one layer up for named primitives instead
of named services.
*/
package comm
