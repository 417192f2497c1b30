// Package health provides the cluster's liveness signal: a TCP-dial
// checker and a periodic Prober that feeds reachability back into
// pkg/cluster.Membership.
//
// # Architecture
//
// Checker is the shared interface; TCPChecker is the only built-in
// implementation, since every cluster member speaks the same
// comm/Raft wire protocol and a bare TCP connect is enough to tell a
// reachable node from an unreachable one.
//
//	type Checker interface {
//		Check(ctx context.Context) Result
//		Type() CheckType
//	}
//
// Prober wraps a Checker in a ticking loop, dialing every known member
// on an interval and calling Membership.UpdateLiveness with the
// result. It runs independently of request traffic, so a partition
// member that stops answering gets marked unreachable even during a
// quiet period with no client load.
//
// Status tracks consecutive successes/failures for a single subject
// and only flips Healthy after a configurable number of consecutive
// failures, to avoid flapping on a single dropped probe.
package health
