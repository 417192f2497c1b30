package atomix

import (
	"context"
	"encoding/json"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/comm"
	"github.com/coreward/atomix/pkg/partition"
	"github.com/coreward/atomix/pkg/primitive"
	"github.com/coreward/atomix/pkg/types"
)

const serviceNames = "primitive.Names"

type namesRequest struct {
	Partition types.PartitionID   `json:"partition"`
	Type      types.PrimitiveType `json:"type"`
}

type namesResponse struct {
	Names   []string `json:"names,omitempty"`
	ErrKind string   `json:"err_kind,omitempty"`
	ErrMsg  string   `json:"err_msg,omitempty"`
}

// registerNamesService exposes every locally-hosted partition's live
// primitive names over the fabric, so primitive.Service.List's
// cluster-wide fan-out can reach a partition the local node does not
// host by asking one of its members.
func registerNamesService(fabric *comm.Fabric, partitions *partition.Service) {
	fabric.Register(serviceNames, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req namesRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		h, ok := partitions.Partition(req.Partition)
		if !ok || !h.IsMember() {
			return json.Marshal(namesResponse{ErrKind: string(atomixerr.LeaderUnknown), ErrMsg: "not a member of this partition"})
		}
		m, ok := h.StateMachine().(*primitive.Machine)
		if !ok {
			return json.Marshal(namesResponse{ErrKind: string(atomixerr.ApplicationError), ErrMsg: "state machine does not hold named primitives"})
		}
		return json.Marshal(namesResponse{Names: m.Names(req.Type)})
	})
}

// newNamesFanout builds the primitive.Config.Remote hook: for a
// partition the local node does not host, it asks each member of that
// partition's replica set in turn until one answers, since Names is a
// read of locally-applied state and any member (not just the leader)
// can serve it.
func newNamesFanout(fabric *comm.Fabric, topo types.PartitionTopology) func(ctx context.Context, partitionID types.PartitionID, t types.PrimitiveType) ([]string, error) {
	return func(ctx context.Context, partitionID types.PartitionID, t types.PrimitiveType) ([]string, error) {
		pm, ok := topo.ByID(partitionID)
		if !ok {
			return nil, atomixerr.Newf(atomixerr.ConfigurationInvalid, "unknown partition %d", partitionID)
		}

		req := namesRequest{Partition: partitionID, Type: t}
		data, err := json.Marshal(req)
		if err != nil {
			return nil, atomixerr.Newf(atomixerr.ApplicationError, "marshal request: %v", err)
		}

		var lastErr error
		for _, nodeID := range pm.Members {
			raw, err := fabric.Call(ctx, nodeID, serviceNames, data)
			if err != nil {
				lastErr = atomixerr.Newf(atomixerr.Unavailable, "%v", err)
				continue
			}
			var res namesResponse
			if err := json.Unmarshal(raw, &res); err != nil {
				lastErr = atomixerr.Newf(atomixerr.ApplicationError, "decode response: %v", err)
				continue
			}
			if res.ErrKind != "" {
				lastErr = atomixerr.Newf(atomixerr.Kind(res.ErrKind), "%s", res.ErrMsg)
				continue
			}
			return res.Names, nil
		}
		return nil, lastErr
	}
}
