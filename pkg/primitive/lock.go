package primitive

import (
	"encoding/json"
	"fmt"
)

// lockOp is the operation envelope a Lock client sends. Holder identifies
// the requesting session so unlock can be rejected for non-holders.
type lockOp struct {
	Op     string `json:"op"`
	Holder string `json:"holder"`
}

type lockResult struct {
	Locked bool   `json:"locked"`
	Holder string `json:"holder,omitempty"`
}

// lockInstance is a replicated mutual-exclusion lock. Only an unlock from
// the holder releases it; nothing releases it when the holder's session
// expires or closes.
type lockInstance struct {
	locked bool
	holder string
}

func newLockInstance() *lockInstance {
	return &lockInstance{}
}

func (l *lockInstance) Apply(data []byte) ([]byte, error) {
	var op lockOp
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, err
	}

	switch op.Op {
	case "lock", "tryLock":
		if l.locked && l.holder != op.Holder {
			return json.Marshal(lockResult{Locked: false, Holder: l.holder})
		}
		l.locked = true
		l.holder = op.Holder
		return json.Marshal(lockResult{Locked: true, Holder: l.holder})
	case "unlock":
		if !l.locked || l.holder != op.Holder {
			return nil, fmt.Errorf("lock: %q does not hold the lock", op.Holder)
		}
		l.locked = false
		l.holder = ""
		return json.Marshal(lockResult{Locked: false})
	case "isLocked":
		return json.Marshal(lockResult{Locked: l.locked, Holder: l.holder})
	default:
		return nil, unknownOp("lock", op.Op)
	}
}

// Query serves isLocked without submitting through Raft.
func (l *lockInstance) Query(data []byte) ([]byte, error) {
	var op lockOp
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, err
	}

	if op.Op != "isLocked" {
		return nil, notAQuery("lock", op.Op)
	}
	return json.Marshal(lockResult{Locked: l.locked, Holder: l.holder})
}

func (l *lockInstance) Snapshot() ([]byte, error) {
	return json.Marshal(lockResult{Locked: l.locked, Holder: l.holder})
}

func (l *lockInstance) Restore(data []byte) error {
	var res lockResult
	if len(data) > 0 {
		if err := json.Unmarshal(data, &res); err != nil {
			return err
		}
	}
	l.locked = res.Locked
	l.holder = res.Holder
	return nil
}
