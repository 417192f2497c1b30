package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/types"
)

func node(id string) types.Node {
	return types.Node{ID: types.NodeID(id), Host: id, Port: 5000}
}

func members(t types.PartitionTopology, id types.PartitionID) map[types.NodeID]bool {
	p, _ := t.ByID(id)
	set := make(map[types.NodeID]bool, len(p.Members))
	for _, m := range p.Members {
		set[m] = true
	}
	return set
}

func TestBuildDeterministicTopology(t *testing.T) {
	bootstrap := []types.Node{node("n1"), node("n2"), node("n3")}

	got, err := Build(bootstrap, Options{})
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())

	want := map[types.PartitionID]map[types.NodeID]bool{
		1: {"n1": true, "n2": true, "n3": true},
		2: {"n2": true, "n3": true, "n1": true},
		3: {"n3": true, "n1": true, "n2": true},
	}
	for id, w := range want {
		assert.Equal(t, w, members(got, id), "partition %d", id)
	}
}

func TestBuildFiveNodesReplicationThree(t *testing.T) {
	bootstrap := []types.Node{node("e"), node("c"), node("a"), node("d"), node("b")}

	got, err := Build(bootstrap, Options{NumPartitions: 5, PartitionSize: 3})
	require.NoError(t, err)

	sorted := []types.NodeID{"a", "b", "c", "d", "e"}
	for i := 0; i < 5; i++ {
		p, ok := got.ByID(types.PartitionID(i + 1))
		require.True(t, ok)
		want := []types.NodeID{sorted[i%5], sorted[(i+1)%5], sorted[(i+2)%5]}
		assert.Equal(t, want, p.Members)
	}
}

func TestBuildBalanceWhenNEqualsBootstrapSize(t *testing.T) {
	bootstrap := []types.Node{node("a"), node("b"), node("c"), node("d")}

	got, err := Build(bootstrap, Options{NumPartitions: 4, PartitionSize: 2})
	require.NoError(t, err)

	counts := make(map[types.NodeID]int)
	for _, p := range got.Partitions {
		for _, m := range p.Members {
			counts[m]++
		}
	}
	for _, n := range bootstrap {
		assert.Equal(t, 2, counts[n.ID], "node %s", n.ID)
	}
}

func TestBuildIsDeterministicAcrossCalls(t *testing.T) {
	bootstrap := []types.Node{node("n1"), node("n2"), node("n3"), node("n4")}

	first, err := Build(bootstrap, Options{})
	require.NoError(t, err)
	second, err := Build(bootstrap, Options{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuildReplicationFactorExceedsClusterSize(t *testing.T) {
	bootstrap := []types.Node{node("a"), node("b"), node("c")}

	_, err := Build(bootstrap, Options{PartitionSize: 4})
	require.Error(t, err)
	assert.True(t, atomixerr.Is(err, atomixerr.ConfigurationInvalid))
}

func TestBuildDegenerateWhenReplicationEqualsClusterSize(t *testing.T) {
	bootstrap := []types.Node{node("a"), node("b"), node("c")}

	got, err := Build(bootstrap, Options{NumPartitions: 3, PartitionSize: 3})
	require.NoError(t, err)
	for _, p := range got.Partitions {
		assert.ElementsMatch(t, []types.NodeID{"a", "b", "c"}, p.Members)
	}
}

func TestBuildExplicitTopologyUsedVerbatim(t *testing.T) {
	bootstrap := []types.Node{node("a"), node("b")}
	explicit := []types.PartitionMetadata{
		{ID: 1, Members: []types.NodeID{"a"}},
		{ID: 2, Members: []types.NodeID{"b", "a"}},
	}

	got, err := Build(bootstrap, Options{Explicit: explicit})
	require.NoError(t, err)
	assert.Equal(t, explicit, got.Partitions)
}

func TestBuildExplicitTopologyRejectsUnknownMember(t *testing.T) {
	bootstrap := []types.Node{node("a")}
	explicit := []types.PartitionMetadata{{ID: 1, Members: []types.NodeID{"z"}}}

	_, err := Build(bootstrap, Options{Explicit: explicit})
	require.Error(t, err)
	assert.True(t, atomixerr.Is(err, atomixerr.ConfigurationInvalid))
}
