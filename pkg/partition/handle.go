package partition

import (
	"context"
	"strconv"
	"time"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/metrics"
	"github.com/coreward/atomix/pkg/types"
	"github.com/hashicorp/raft"
)

// Handle is one partition: its id, replica set, local data directory, and a
// Raft participant if the local node is a member of the replica set.
type Handle struct {
	id       types.PartitionID
	members  []types.NodeID
	dataDir  string
	isMember bool
	sm       StateMachine

	raft         *raft.Raft
	transport    *raft.NetworkTransport
	applyTimeout time.Duration
}

// StateMachine returns the state machine replicated by this partition, or
// nil for a pure client view. Callers that need to reach through to a
// concrete state machine (pkg/primitive's fan-out listing, for instance)
// type-assert the result themselves; Handle only knows the opaque
// StateMachine contract.
func (h *Handle) StateMachine() StateMachine { return h.sm }

// ID returns the partition id.
func (h *Handle) ID() types.PartitionID { return h.id }

// Members returns the replica set.
func (h *Handle) Members() []types.NodeID { return h.members }

// DataDir returns the partition's local data directory.
func (h *Handle) DataDir() string { return h.dataDir }

// IsMember reports whether the local node hosts a Raft participant for
// this partition, as opposed to a pure client view.
func (h *Handle) IsMember() bool { return h.isMember }

// IsLeader reports whether the local node is the current Raft leader.
func (h *Handle) IsLeader() bool {
	if h.raft == nil {
		return false
	}
	return h.raft.State() == raft.Leader
}

// LeaderHint returns the node id Raft believes is the current leader, or
// "" if unknown. It is only meaningful to a local participant; callers on
// a pure client view consult the session manager's cached hint instead.
// Raft's ServerID is how AddVoter registers nodes (see AddVoter below), so
// it lines up directly with types.NodeID - the address half of
// LeaderWithID's return is not something comm.Fabric.Call can resolve.
func (h *Handle) LeaderHint() string {
	if h.raft == nil {
		return ""
	}
	_, id := h.raft.LeaderWithID()
	return string(id)
}

// Apply submits cmd through Raft and returns the state machine's response.
// Returns a LeaderUnknown error if the local node is not a participant or
// not the leader, matching the NotLeader(hint) contract session management
// relies on to retarget requests.
func (h *Handle) Apply(ctx context.Context, cmd []byte) ([]byte, error) {
	if h.raft == nil {
		return nil, atomixerr.New(atomixerr.LeaderUnknown, nil)
	}
	if h.raft.State() != raft.Leader {
		return nil, atomixerr.Newf(atomixerr.LeaderUnknown, "not leader, hint=%s", h.LeaderHint())
	}

	timer := metrics.NewTimer()
	timeout := h.applyTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	future := h.raft.Apply(cmd, timeout)
	timer.ObserveDurationVec(metrics.RaftApplyDuration, strconv.Itoa(int(h.id)))

	if err := future.Error(); err != nil {
		if err == raft.ErrLeadershipLost || err == raft.ErrNotLeader {
			return nil, atomixerr.Newf(atomixerr.LeaderUnknown, "lost leadership: %v", err)
		}
		return nil, atomixerr.Newf(atomixerr.Timeout, "apply: %v", err)
	}

	res, ok := future.Response().(applyResult)
	if !ok {
		return nil, atomixerr.New(atomixerr.ApplicationError, nil)
	}
	if res.err != nil {
		return nil, atomixerr.Newf(atomixerr.ApplicationError, "%v", res.err)
	}
	return res.response, nil
}

// Query serves payload against the local state machine without
// submitting it through Raft, honoring consistency:
//
//   - Linearizable requires this node to be leader and confirms it still
//     holds a live quorum lease via raft.VerifyLeader before reading, so
//     the answer reflects every write committed before the read began.
//   - LinearizableLease requires leadership but trusts the local Raft
//     state without a quorum round trip, tolerating the narrow window
//     where a stale leader hasn't yet stepped down.
//   - Sequential is served by any member, leader or not, and may lag the
//     leader's state by whatever the local Raft log has not yet applied.
func (h *Handle) Query(_ context.Context, payload []byte, consistency types.ReadConsistency) ([]byte, error) {
	if h.sm == nil || !h.isMember {
		return nil, atomixerr.New(atomixerr.LeaderUnknown, nil)
	}

	switch consistency {
	case types.Linearizable:
		if h.raft == nil || h.raft.State() != raft.Leader {
			return nil, atomixerr.Newf(atomixerr.LeaderUnknown, "not leader, hint=%s", h.LeaderHint())
		}
		if err := h.raft.VerifyLeader().Error(); err != nil {
			return nil, atomixerr.Newf(atomixerr.LeaderUnknown, "lost leadership: %v", err)
		}
	case types.LinearizableLease:
		if h.raft == nil || h.raft.State() != raft.Leader {
			return nil, atomixerr.Newf(atomixerr.LeaderUnknown, "not leader, hint=%s", h.LeaderHint())
		}
	case types.Sequential:
		// Any member may answer, including a follower lagging the leader.
	default:
		return nil, atomixerr.Newf(atomixerr.ApplicationError, "unknown read consistency %q", consistency)
	}

	return h.sm.Query(payload)
}

// Ping confirms the local node is still the Raft leader for this
// partition, without committing anything to the log.
func (h *Handle) Ping(ctx context.Context) error {
	if h.raft == nil || h.raft.State() != raft.Leader {
		return atomixerr.Newf(atomixerr.LeaderUnknown, "hint=%s", h.LeaderHint())
	}
	return nil
}

// AddVoter adds nodeID at addr to this partition's Raft configuration.
// Only the leader may do this.
func (h *Handle) AddVoter(nodeID types.NodeID, addr string) error {
	if h.raft == nil || h.raft.State() != raft.Leader {
		return atomixerr.New(atomixerr.LeaderUnknown, nil)
	}
	future := h.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return atomixerr.Newf(atomixerr.Unavailable, "add voter: %v", err)
	}
	return nil
}

// RemoveServer removes nodeID from this partition's Raft configuration.
func (h *Handle) RemoveServer(nodeID types.NodeID) error {
	if h.raft == nil || h.raft.State() != raft.Leader {
		return atomixerr.New(atomixerr.LeaderUnknown, nil)
	}
	future := h.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return atomixerr.Newf(atomixerr.Unavailable, "remove server: %v", err)
	}
	return nil
}

// Stats returns a small snapshot of Raft statistics for the metrics
// collector and health checks.
type Stats struct {
	IsLeader     bool
	AppliedIndex uint64
	LastIndex    uint64
	Peers        int
}

// Stats reports current Raft statistics. Returns the zero value for a pure
// client view.
func (h *Handle) Stats() Stats {
	if h.raft == nil {
		return Stats{}
	}

	s := Stats{
		IsLeader:     h.IsLeader(),
		AppliedIndex: h.raft.AppliedIndex(),
		LastIndex:    h.raft.LastIndex(),
	}

	future := h.raft.GetConfiguration()
	if err := future.Error(); err == nil {
		s.Peers = len(future.Configuration().Servers)
	}
	return s
}

// close shuts down the Raft participant and releases the data directory
// lock. Idempotent.
func (h *Handle) close() error {
	if h.raft == nil {
		return nil
	}
	future := h.raft.Shutdown()
	if err := future.Error(); err != nil {
		return atomixerr.Newf(atomixerr.Unavailable, "shutdown partition %d: %v", h.id, err)
	}
	return nil
}
