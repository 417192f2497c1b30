package primitive

import "github.com/coreward/atomix/pkg/atomixerr"

func unknownOp(kind, op string) error {
	return atomixerr.Newf(atomixerr.ApplicationError, "%s: unknown operation %q", kind, op)
}

// notAQuery rejects an operation submitted through Query that mutates
// state and must instead go through Apply and the replicated log.
func notAQuery(kind, op string) error {
	return atomixerr.Newf(atomixerr.ApplicationError, "%s: %q is not a read-only operation", kind, op)
}
