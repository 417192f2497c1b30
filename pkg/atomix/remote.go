package atomix

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/comm"
	"github.com/coreward/atomix/pkg/partition"
	"github.com/coreward/atomix/pkg/session"
	"github.com/coreward/atomix/pkg/types"
)

const (
	serviceApply = "partition.Apply"
	servicePing  = "partition.Ping"
	serviceQuery = "partition.Query"
)

type applyRequest struct {
	Partition types.PartitionID `json:"partition"`
	Cmd       []byte            `json:"cmd"`
}

type queryRequest struct {
	Partition   types.PartitionID     `json:"partition"`
	Payload     []byte                `json:"payload"`
	Consistency types.ReadConsistency `json:"consistency"`
}

type applyResponse struct {
	Data    []byte `json:"data,omitempty"`
	ErrKind string `json:"err_kind,omitempty"`
	ErrMsg  string `json:"err_msg,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// registerPartitionServices exposes every locally-hosted partition's
// Apply/Ping over the communication fabric, so nodes that are not
// members of a partition's replica set can still submit sessions
// against it through whichever member answers. Responses carry the
// answering member's LeaderHint so a caller that lands on a non-leader
// can retarget its next request instead of round-robining blind.
func registerPartitionServices(fabric *comm.Fabric, partitions *partition.Service) {
	fabric.Register(serviceApply, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req applyRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		h, ok := partitions.Partition(req.Partition)
		if !ok || !h.IsMember() {
			return json.Marshal(applyResponse{ErrKind: string(atomixerr.LeaderUnknown), ErrMsg: "not a member of this partition"})
		}
		resp, err := h.Apply(ctx, req.Cmd)
		return encodeApplyResponse(resp, err, h.LeaderHint())
	})

	fabric.Register(servicePing, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req applyRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		h, ok := partitions.Partition(req.Partition)
		if !ok || !h.IsMember() {
			return json.Marshal(applyResponse{ErrKind: string(atomixerr.LeaderUnknown)})
		}
		err := h.Ping(ctx)
		return encodeApplyResponse(nil, err, h.LeaderHint())
	})

	fabric.Register(serviceQuery, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req queryRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		h, ok := partitions.Partition(req.Partition)
		if !ok || !h.IsMember() {
			return json.Marshal(applyResponse{ErrKind: string(atomixerr.LeaderUnknown), ErrMsg: "not a member of this partition"})
		}
		resp, err := h.Query(ctx, req.Payload, req.Consistency)
		return encodeApplyResponse(resp, err, h.LeaderHint())
	})
}

func encodeApplyResponse(data []byte, err error, hint string) ([]byte, error) {
	res := applyResponse{Data: data, Hint: hint}
	if err != nil {
		kind, ok := atomixerr.KindOf(err)
		if !ok {
			kind = atomixerr.ApplicationError
		}
		res.ErrKind = string(kind)
		res.ErrMsg = err.Error()
	}
	return json.Marshal(res)
}

// remoteClient is the session.PartitionClient used for a partition the
// local node does not host, or hosts but is not currently leading. It
// targets its cached leader hint first and falls back to round-robining
// the replica set once that hint is stale, updating the hint whenever a
// response names one (the NotLeader(hint) contract of spec C7).
type remoteClient struct {
	fabric      *comm.Fabric
	partitionID types.PartitionID
	members     []types.NodeID
	next        atomic.Uint64

	hintMu sync.RWMutex
	hint   types.NodeID
}

func newRemoteClient(fabric *comm.Fabric, partitionID types.PartitionID, members []types.NodeID) *remoteClient {
	return &remoteClient{fabric: fabric, partitionID: partitionID, members: members}
}

// newRemoteClientWithHint is newRemoteClient seeded with a previously
// observed leader hint, so a retargeted session starts at the suspected
// leader instead of wherever round-robin would otherwise land.
func newRemoteClientWithHint(fabric *comm.Fabric, partitionID types.PartitionID, members []types.NodeID, hint types.NodeID) *remoteClient {
	r := newRemoteClient(fabric, partitionID, members)
	r.hint = hint
	return r
}

func (r *remoteClient) target() types.NodeID {
	r.hintMu.RLock()
	hint := r.hint
	r.hintMu.RUnlock()
	if hint != "" {
		for _, m := range r.members {
			if m == hint {
				return hint
			}
		}
	}

	i := r.next.Add(1) - 1
	return r.members[int(i)%len(r.members)]
}

func (r *remoteClient) recordHint(hint string) {
	if hint == "" {
		return
	}
	r.hintMu.Lock()
	r.hint = types.NodeID(hint)
	r.hintMu.Unlock()
}

func (r *remoteClient) send(ctx context.Context, service string, data []byte) ([]byte, error) {
	target := r.target()
	raw, err := r.fabric.Call(ctx, target, service, data)
	if err != nil {
		// The hinted node did not answer: drop the stale hint so the next
		// call round-robins the replica set.
		r.hintMu.Lock()
		if r.hint == target {
			r.hint = ""
		}
		r.hintMu.Unlock()
		return nil, atomixerr.Newf(atomixerr.Unavailable, "%v", err)
	}

	var res applyResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, atomixerr.Newf(atomixerr.ApplicationError, "decode response: %v", err)
	}
	r.recordHint(res.Hint)
	if res.ErrKind != "" {
		return nil, atomixerr.Newf(atomixerr.Kind(res.ErrKind), "%s", res.ErrMsg)
	}
	return res.Data, nil
}

func (r *remoteClient) call(ctx context.Context, service string, cmd []byte) ([]byte, error) {
	req := applyRequest{Partition: r.partitionID, Cmd: cmd}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.ApplicationError, "marshal request: %v", err)
	}
	return r.send(ctx, service, data)
}

func (r *remoteClient) Apply(ctx context.Context, cmd []byte) ([]byte, error) {
	return r.call(ctx, serviceApply, cmd)
}

func (r *remoteClient) Query(ctx context.Context, payload []byte, consistency types.ReadConsistency) ([]byte, error) {
	req := queryRequest{Partition: r.partitionID, Payload: payload, Consistency: consistency}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.ApplicationError, "marshal request: %v", err)
	}
	return r.send(ctx, serviceQuery, data)
}

func (r *remoteClient) Ping(ctx context.Context) error {
	_, err := r.call(ctx, servicePing, nil)
	return err
}

func (r *remoteClient) IsLeader() bool { return false }

func (r *remoteClient) LeaderHint() string {
	r.hintMu.RLock()
	defer r.hintMu.RUnlock()
	return string(r.hint)
}

func (r *remoteClient) Members() []types.NodeID {
	return r.members
}

var _ session.PartitionClient = (*remoteClient)(nil)
