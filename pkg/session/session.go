package session

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/types"
)

// PartitionClient is whatever a session needs from the partition it is
// bound to: apply a command and report leader hints. Satisfied directly
// by pkg/partition.Handle for local partitions, and by a remote stub over
// pkg/comm for everything else.
type PartitionClient interface {
	Apply(ctx context.Context, cmd []byte) ([]byte, error)
	// Query serves a read-only operation at the requested consistency
	// level without going through Apply's replicated log entry.
	Query(ctx context.Context, payload []byte, consistency types.ReadConsistency) ([]byte, error)
	// Ping is a lightweight keepalive that confirms the leader is still
	// reachable without committing anything to the replicated log.
	Ping(ctx context.Context) error
	IsLeader() bool
	LeaderHint() string
	Members() []types.NodeID
}

// Command is the wire envelope a session wraps every submission in so the
// replicated state machine can enforce per-session order and deduplicate
// retried commands by sequence number.
type Command struct {
	SessionID types.SessionID `json:"session_id"`
	Sequence  uint64          `json:"sequence"`
	Payload   json.RawMessage `json:"payload"`
}

// Session is a logical client<->partition relationship.
type Session struct {
	ID          types.SessionID
	ClientID    string
	PartitionID types.PartitionID

	mu    sync.Mutex
	state types.SessionState
	seq   atomic.Uint64

	client       PartitionClient
	timeout      time.Duration
	lastActivity time.Time

	// reportHint, if set, is called with client.LeaderHint() whenever a
	// NotLeader(hint) response updates it, so the owning Manager's cache
	// is kept current for the next Open on this partition (see
	// Manager.Open / Manager.UpdateLeaderHint).
	reportHint func(types.NodeID)
}

// State returns the session's current lifecycle state.
func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st types.SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// Submit serializes cmd behind the session's sequence counter and applies
// it through the session's partition client. Commands issued on the same
// session are guaranteed to be applied in the order Submit was called.
func (s *Session) Submit(ctx context.Context, payload []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case types.SessionExpired:
		return nil, atomixerr.New(atomixerr.SessionExpired, nil)
	case types.SessionClosed:
		return nil, atomixerr.New(atomixerr.NotOpen, nil)
	}

	cmd := Command{
		SessionID: s.ID,
		Sequence:  s.seq.Add(1),
		Payload:   payload,
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.ApplicationError, "marshal command: %v", err)
	}

	resp, err := s.client.Apply(ctx, data)
	if err != nil {
		if atomixerr.Is(err, atomixerr.LeaderUnknown) || atomixerr.Is(err, atomixerr.Unavailable) {
			s.state = types.SessionSuspended
			if s.reportHint != nil {
				if hint := s.client.LeaderHint(); hint != "" {
					s.reportHint(types.NodeID(hint))
				}
			}
		}
		return nil, err
	}

	s.state = types.SessionOpen
	s.lastActivity = time.Now()
	return resp, nil
}

// Query serves a read-only payload at the requested consistency,
// bypassing the Command envelope Submit wraps writes in: reads are
// idempotent, so they need neither a sequence number nor dedup.
func (s *Session) Query(ctx context.Context, payload []byte, consistency types.ReadConsistency) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case types.SessionExpired:
		return nil, atomixerr.New(atomixerr.SessionExpired, nil)
	case types.SessionClosed:
		return nil, atomixerr.New(atomixerr.NotOpen, nil)
	}

	resp, err := s.client.Query(ctx, payload, consistency)
	if err != nil {
		if atomixerr.Is(err, atomixerr.LeaderUnknown) || atomixerr.Is(err, atomixerr.Unavailable) {
			if s.reportHint != nil {
				if hint := s.client.LeaderHint(); hint != "" {
					s.reportHint(types.NodeID(hint))
				}
			}
		}
		return nil, err
	}

	s.lastActivity = time.Now()
	return resp, nil
}
