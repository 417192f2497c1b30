/*
Package transport implements the external messaging transport (component
C1): point-to-point send and request-reply over a network endpoint.

It is deliberately minimal and opaque to payload structure — a single
unary RPC carrying raw bytes in both directions, authenticated with mTLS
using the cluster certificate authority (pkg/security). Everything with
an opinion about what those bytes mean — service names, typed
request-reply, direct messaging — lives one layer up in pkg/comm.

There is no generated protobuf stub here. grpc-go's codec is a pluggable
extension point independent of protobuf; Server and Client register a
raw byte codec so a single hand-written grpc.ServiceDesc carries
arbitrary payloads without a .proto file or a protoc step.
*/
package transport
