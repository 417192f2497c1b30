/*
Package proxy assembles the user-facing primitive proxy from a raw
session-bound proxy by fixed composition order, innermost first:

	P0 -> Recovering(P0)? -> Retrying(.)? -> BlockingAware(.) -> Delegating(.)

Every layer implements both Invoke (writes, submitted through a
session's replicated log) and Query (reads, served at a caller-chosen
types.ReadConsistency without a log entry); the two share the same
adapter chain and differ only in what the bottom of the stack does with
them.

Recovering is opt-in via Options.Recovery.Enabled: on the
inner proxy's SessionExpired it transparently opens a fresh session and
resumes, surfacing OperationLost for whatever was in flight at the moment
of failure. Retrying is opt-in via maxRetries > 0: it retries transient
errors (Unavailable, LeaderUnknown, OperationLost) with a fixed delay,
passing everything else through unchanged. BlockingAware is always
applied and reschedules continuations that would otherwise run on a
session/IO thread back onto a caller-supplied executor. Delegating is
always outermost, giving the caller a stable handle even though
Recovering may swap out everything beneath it.

The ordering is load-bearing: Retrying must sit outside Recovering so a
session replacement's OperationLost is something the retrier can consume,
and BlockingAware must sit outside both because only it knows the
caller's executor.
*/
package proxy
