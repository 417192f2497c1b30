package primitive

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func applyLock(t *testing.T, l *lockInstance, op lockOp) lockResult {
	t.Helper()
	data, err := json.Marshal(op)
	require.NoError(t, err)
	resp, err := l.Apply(data)
	require.NoError(t, err)
	var res lockResult
	require.NoError(t, json.Unmarshal(resp, &res))
	return res
}

func TestLockGrantsToFirstHolder(t *testing.T) {
	l := newLockInstance()
	res := applyLock(t, l, lockOp{Op: "lock", Holder: "a"})
	require.True(t, res.Locked)
	require.Equal(t, "a", res.Holder)
}

func TestLockRejectsSecondHolder(t *testing.T) {
	l := newLockInstance()
	applyLock(t, l, lockOp{Op: "lock", Holder: "a"})

	res := applyLock(t, l, lockOp{Op: "tryLock", Holder: "b"})
	require.False(t, res.Locked)
	require.Equal(t, "a", res.Holder)
}

func TestLockUnlockByNonHolderFails(t *testing.T) {
	l := newLockInstance()
	applyLock(t, l, lockOp{Op: "lock", Holder: "a"})

	data, err := json.Marshal(lockOp{Op: "unlock", Holder: "b"})
	require.NoError(t, err)
	_, err = l.Apply(data)
	require.Error(t, err)
}

func TestLockQueryReportsIsLockedWithoutApplying(t *testing.T) {
	l := newLockInstance()
	applyLock(t, l, lockOp{Op: "lock", Holder: "a"})

	data, err := json.Marshal(lockOp{Op: "isLocked"})
	require.NoError(t, err)
	resp, err := l.Query(data)
	require.NoError(t, err)

	var res lockResult
	require.NoError(t, json.Unmarshal(resp, &res))
	require.True(t, res.Locked)
	require.Equal(t, "a", res.Holder)
}

func TestLockQueryRejectsMutatingOps(t *testing.T) {
	l := newLockInstance()
	data, err := json.Marshal(lockOp{Op: "lock", Holder: "a"})
	require.NoError(t, err)

	_, err = l.Query(data)
	require.Error(t, err)
}

func TestLockUnlockThenReacquire(t *testing.T) {
	l := newLockInstance()
	applyLock(t, l, lockOp{Op: "lock", Holder: "a"})
	applyLock(t, l, lockOp{Op: "unlock", Holder: "a"})

	res := applyLock(t, l, lockOp{Op: "lock", Holder: "b"})
	require.True(t, res.Locked)
	require.Equal(t, "b", res.Holder)
}
