/*
Package atomix is the composition root: the Builder that validates
configuration and assembles every other component, and the Atomix
runtime handle it returns.

Open sequences components in a fixed, single-threaded order — local
storage and the certificate authority, the partition topology and the
node certificate, membership and its liveness prober, the communication
fabric (which starts the transport listener), the event fabric, the
partition service, the session manager, the primitive service, then the
optional REST surface — awaiting each step before starting the next. The
transport is not opened as a step of its own ahead of membership: it
comes up inside the communication fabric.
Any step's failure tears down everything already opened, in reverse
order, before the error surfaces; a successful open sets the internal
"open" flag last. Close reverses the same order and is idempotent.

Primitive-service operations (build, list) are rejected with NotOpen
until open has completed.
*/
package atomix
