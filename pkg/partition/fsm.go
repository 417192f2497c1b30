package partition

import (
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// StateMachine is the domain logic a partition replicates. It is supplied
// by pkg/primitive and treated as opaque by the FSM: command and snapshot
// payloads are byte blobs whose structure only the state machine and its
// caller understand.
type StateMachine interface {
	// Apply applies a single command and returns its result bytes.
	Apply(cmd []byte) ([]byte, error)
	// Query serves a read-only operation directly against current state,
	// bypassing the replicated log. The caller (Handle.Query) is
	// responsible for deciding this node is current enough to answer.
	Query(op []byte) ([]byte, error)
	// Snapshot returns a byte-serialized point-in-time copy of all state.
	Snapshot() ([]byte, error)
	// Restore replaces all state from a previously produced snapshot.
	Restore(data []byte) error
}

// applyResult is what FSM.Apply returns through the raft.Log interface; the
// caller type-asserts it back out of the ApplyFuture.
type applyResult struct {
	response []byte
	err      error
}

// FSM adapts a StateMachine to the hashicorp/raft FSM interface.
type FSM struct {
	mu sync.Mutex
	sm StateMachine
}

// NewFSM wraps sm as a raft.FSM.
func NewFSM(sm StateMachine) *FSM {
	return &FSM{sm: sm}
}

// Apply is called by Raft once a log entry is committed.
func (f *FSM) Apply(log *raft.Log) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	resp, err := f.sm.Apply(log.Data)
	return applyResult{response: resp, err: err}
}

// Snapshot captures the current state for log compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.sm.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot state machine: %w", err)
	}
	return &fsmSnapshot{data: data}, nil
}

// Restore replaces FSM state from a snapshot, called on restart or join.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.sm.Restore(data)
}

type fsmSnapshot struct {
	data []byte
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if _, err := sink.Write(s.data); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
