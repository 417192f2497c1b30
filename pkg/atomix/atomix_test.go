package atomix

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/coreward/atomix/pkg/types"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, commPort, raftPort, httpPort int) Config {
	t.Helper()
	node := types.Node{ID: "n1", Host: "127.0.0.1", Port: commPort, Role: types.NodeRoleMember}
	return Config{
		ClusterName:    "test",
		LocalNode:      node,
		BootstrapNodes: []types.Node{node},
		RaftPort:       raftPort,
		NumPartitions:  2,
		PartitionSize:  1,
		DataDir:        t.TempDir(),
		HTTPPort:       httpPort,
	}
}

func openedRuntime(t *testing.T, commPort, raftPort, httpPort int) *Runtime {
	t.Helper()
	rt, err := NewBuilder(testConfig(t, commPort, raftPort, httpPort)).Build()
	require.NoError(t, err)
	require.NoError(t, rt.Open())
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestBuilderRejectsMissingLocalNode(t *testing.T) {
	_, err := NewBuilder(Config{BootstrapNodes: []types.Node{{ID: "n1"}}}).Build()
	require.Error(t, err)
}

func TestBuilderRejectsLocalNodeNotInBootstrapSet(t *testing.T) {
	_, err := NewBuilder(Config{
		LocalNode:      types.Node{ID: "n1"},
		BootstrapNodes: []types.Node{{ID: "n2"}},
	}).Build()
	require.Error(t, err)
}

func TestRuntimeBuildFailsBeforeOpen(t *testing.T) {
	rt, err := NewBuilder(testConfig(t, 19301, 19302, 0)).Build()
	require.NoError(t, err)

	_, err = rt.Build("c", types.PrimitiveTypeCounter)
	require.Error(t, err)
}

func TestRuntimeOpenCloseIsIdempotent(t *testing.T) {
	rt := openedRuntime(t, 19311, 19312, 0)
	require.NoError(t, rt.Open())
	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())
}

func TestRuntimeBuildAndInvokeCounter(t *testing.T) {
	rt := openedRuntime(t, 19321, 19322, 0)

	p, err := rt.Build("hits", types.PrimitiveTypeCounter)
	require.NoError(t, err)

	op, err := json.Marshal(struct {
		Op string `json:"op"`
	}{Op: "incrementAndGet"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp, err := p.Invoke(ctx, op)
	require.NoError(t, err)

	var res struct {
		Value int64 `json:"value"`
	}
	require.NoError(t, json.Unmarshal(resp, &res))
	require.Equal(t, int64(1), res.Value)
}

func TestRuntimeEventsPublishSubscribe(t *testing.T) {
	rt := openedRuntime(t, 19331, 19332, 0)

	sub, err := rt.Subscribe("widget.created")
	require.NoError(t, err)
	defer rt.Unsubscribe("widget.created", sub)

	require.NoError(t, rt.Publish("widget.created", map[string]string{"id": "w1"}))

	select {
	case evt := <-sub:
		require.Equal(t, "widget.created", evt.Topic)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestRuntimeListReturnsBuiltPrimitives(t *testing.T) {
	rt := openedRuntime(t, 19341, 19342, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	op, err := json.Marshal(struct {
		Op    string `json:"op"`
		Key   string `json:"key"`
		Value string `json:"value"`
	}{Op: "put", Key: "k", Value: "v"})
	require.NoError(t, err)

	for _, name := range []string{"m1", "m2"} {
		p, err := rt.Build(name, types.PrimitiveTypeMap)
		require.NoError(t, err)
		_, err = p.Invoke(ctx, op)
		require.NoError(t, err)
	}

	names, err := rt.List(ctx, types.PrimitiveTypeMap)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"m1", "m2"}, names)
}

func TestRuntimeQueryServesLinearizableReadWithoutMutating(t *testing.T) {
	rt := openedRuntime(t, 19345, 19346, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	p, err := rt.Build("hits2", types.PrimitiveTypeCounter)
	require.NoError(t, err)

	incr, err := json.Marshal(struct {
		Op string `json:"op"`
	}{Op: "incrementAndGet"})
	require.NoError(t, err)
	_, err = p.Invoke(ctx, incr)
	require.NoError(t, err)

	get, err := json.Marshal(struct {
		Op string `json:"op"`
	}{Op: "get"})
	require.NoError(t, err)

	resp, err := p.Query(ctx, get, types.Linearizable)
	require.NoError(t, err)

	var res struct {
		Value int64 `json:"value"`
	}
	require.NoError(t, json.Unmarshal(resp, &res))
	require.Equal(t, int64(1), res.Value)
}

// twoNodeBootstrap returns a pair of 127.0.0.1 cluster nodes for tests
// that need a real multi-node Raft group instead of the single-node,
// always-own-leader topology most tests use.
func twoNodeBootstrap(commPort1, commPort2 int) (types.Node, types.Node) {
	n1 := types.Node{ID: "n1", Host: "127.0.0.1", Port: commPort1, Role: types.NodeRoleMember}
	n2 := types.Node{ID: "n2", Host: "127.0.0.1", Port: commPort2, Role: types.NodeRoleMember}
	return n1, n2
}

// TestRuntimeNonLeaderMemberFallsBackThroughFabric exercises the case
// review comment #5 targeted: a node that is a Raft member of a
// partition but not its current leader must forward through the
// communication fabric rather than answering LeaderUnknown itself.
func TestRuntimeNonLeaderMemberFallsBackThroughFabric(t *testing.T) {
	n1, n2 := twoNodeBootstrap(19351, 19353)
	bootstrap := []types.Node{n1, n2}

	cfg1 := Config{
		ClusterName: "test-ha", LocalNode: n1, BootstrapNodes: bootstrap,
		RaftPort: 19352, NumPartitions: 1, PartitionSize: 2, DataDir: t.TempDir(),
	}
	cfg2 := Config{
		ClusterName: "test-ha", LocalNode: n2, BootstrapNodes: bootstrap,
		RaftPort: 19354, NumPartitions: 1, PartitionSize: 2, DataDir: t.TempDir(),
	}

	rt1, err := NewBuilder(cfg1).Build()
	require.NoError(t, err)
	require.NoError(t, rt1.Open())
	t.Cleanup(func() { _ = rt1.Close() })

	rt2, err := NewBuilder(cfg2).Build()
	require.NoError(t, err)
	require.NoError(t, rt2.Open())
	t.Cleanup(func() { _ = rt2.Close() })

	var followerRT *Runtime
	require.Eventually(t, func() bool {
		h1, ok1 := rt1.partitions.Partition(1)
		h2, ok2 := rt2.partitions.Partition(1)
		if !ok1 || !ok2 {
			return false
		}
		switch {
		case h1.IsLeader():
			followerRT = rt2
			return true
		case h2.IsLeader():
			followerRT = rt1
			return true
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	p, err := followerRT.Build("ha-counter", types.PrimitiveTypeCounter)
	require.NoError(t, err)

	op, err := json.Marshal(struct {
		Op string `json:"op"`
	}{Op: "incrementAndGet"})
	require.NoError(t, err)

	resp, err := p.Invoke(ctx, op)
	require.NoError(t, err)

	var res struct {
		Value int64 `json:"value"`
	}
	require.NoError(t, json.Unmarshal(resp, &res))
	require.Equal(t, int64(1), res.Value)
}

// TestRuntimeListFansOutAcrossPartitions exercises review comment #6:
// with partitions split one-per-node, listing from either node must see
// primitives built through the other.
func TestRuntimeListFansOutAcrossPartitions(t *testing.T) {
	n1, n2 := twoNodeBootstrap(19361, 19363)
	bootstrap := []types.Node{n1, n2}

	cfg1 := Config{
		ClusterName: "test-fanout", LocalNode: n1, BootstrapNodes: bootstrap,
		RaftPort: 19362, NumPartitions: 2, PartitionSize: 1, DataDir: t.TempDir(),
	}
	cfg2 := Config{
		ClusterName: "test-fanout", LocalNode: n2, BootstrapNodes: bootstrap,
		RaftPort: 19364, NumPartitions: 2, PartitionSize: 1, DataDir: t.TempDir(),
	}

	rt1, err := NewBuilder(cfg1).Build()
	require.NoError(t, err)
	require.NoError(t, rt1.Open())
	t.Cleanup(func() { _ = rt1.Close() })

	rt2, err := NewBuilder(cfg2).Build()
	require.NoError(t, err)
	require.NoError(t, rt2.Open())
	t.Cleanup(func() { _ = rt2.Close() })

	require.Eventually(t, func() bool {
		h1, ok1 := rt1.partitions.Partition(1)
		h2, ok2 := rt2.partitions.Partition(2)
		return ok1 && ok2 && h1.IsLeader() && h2.IsLeader()
	}, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	op, err := json.Marshal(struct {
		Op  string `json:"op"`
		Key string `json:"key"`
	}{Op: "get", Key: "missing"})
	require.NoError(t, err)

	names := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("fanout-%d", i)
		p, err := rt1.Build(name, types.PrimitiveTypeMap)
		require.NoError(t, err)
		_, err = p.Invoke(ctx, op)
		require.NoError(t, err)
		names = append(names, name)
	}

	// Every name above was built through rt1, landing on whichever of
	// the two single-node partitions partitionOf happened to hash it
	// to. List from rt2 must still see all of them: the ones rt2 hosts
	// locally, and the ones it reaches through the fabric fan-out.
	seenFromRT2, err := rt2.List(ctx, types.PrimitiveTypeMap)
	require.NoError(t, err)
	require.ElementsMatch(t, names, seenFromRT2)

	seenFromRT1, err := rt1.List(ctx, types.PrimitiveTypeMap)
	require.NoError(t, err)
	require.ElementsMatch(t, names, seenFromRT1)
}
