package topology

import (
	"sort"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/types"
)

// Options configure topology derivation. Explicit takes precedence over
// NumPartitions/PartitionSize when non-empty.
type Options struct {
	NumPartitions int
	PartitionSize int
	Explicit      []types.PartitionMetadata
}

// Build derives a PartitionTopology from the bootstrap node set per the
// sliding-window assignment: sort bootstrap nodes by id, then partition
// i+1 gets replica set { S[(i+j) mod b] : j in [0, R) }, b = len(bootstrap).
//
// When opts.Explicit is non-empty it is used verbatim (still validated
// against the bootstrap set). Otherwise NumPartitions defaults to
// len(bootstrap) and PartitionSize defaults to min(len(bootstrap), 3).
func Build(bootstrap []types.Node, opts Options) (types.PartitionTopology, error) {
	if len(opts.Explicit) > 0 {
		return buildExplicit(bootstrap, opts.Explicit)
	}

	b := len(bootstrap)
	n := opts.NumPartitions
	if n == 0 {
		n = b
	}
	r := opts.PartitionSize
	if r == 0 {
		r = min(b, 3)
	}

	if n <= 0 {
		return types.PartitionTopology{}, atomixerr.Newf(atomixerr.ConfigurationInvalid,
			"numPartitions must be > 0, got %d", n)
	}
	if r <= 0 || r > b {
		return types.PartitionTopology{}, atomixerr.Newf(atomixerr.ConfigurationInvalid,
			"partitionSize %d must be in [1, %d] (bootstrap cluster size)", r, b)
	}

	sorted := make([]types.NodeID, b)
	for i, node := range bootstrap {
		sorted[i] = node.ID
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	partitions := make([]types.PartitionMetadata, n)
	for i := 0; i < n; i++ {
		members := make([]types.NodeID, r)
		for j := 0; j < r; j++ {
			members[j] = sorted[(i+j)%b]
		}
		partitions[i] = types.PartitionMetadata{
			ID:      types.PartitionID(i + 1),
			Members: members,
		}
	}

	return types.PartitionTopology{Partitions: partitions}, nil
}

func buildExplicit(bootstrap []types.Node, explicit []types.PartitionMetadata) (types.PartitionTopology, error) {
	known := make(map[types.NodeID]bool, len(bootstrap))
	for _, n := range bootstrap {
		known[n.ID] = true
	}
	for _, p := range explicit {
		if len(p.Members) == 0 {
			return types.PartitionTopology{}, atomixerr.Newf(atomixerr.ConfigurationInvalid,
				"partition %d has an empty replica set", p.ID)
		}
		if len(p.Members) > len(bootstrap) {
			return types.PartitionTopology{}, atomixerr.Newf(atomixerr.ConfigurationInvalid,
				"partition %d replica set (%d) exceeds cluster size (%d)", p.ID, len(p.Members), len(bootstrap))
		}
		for _, m := range p.Members {
			if !known[m] {
				return types.PartitionTopology{}, atomixerr.Newf(atomixerr.ConfigurationInvalid,
					"partition %d member %q is not in the cluster", p.ID, m)
			}
		}
	}
	return types.PartitionTopology{Partitions: explicit}, nil
}
