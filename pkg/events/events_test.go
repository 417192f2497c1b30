package events

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/coreward/atomix/pkg/cluster"
	"github.com/coreward/atomix/pkg/comm"
	"github.com/coreward/atomix/pkg/security"
	"github.com/coreward/atomix/pkg/storage"
	"github.com/coreward/atomix/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestBrokerDeliversLocalSubscribers(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ca := security.NewCertAuthority(store)
	require.NoError(t, ca.Initialize())

	nodeA := types.Node{ID: "a", Host: "127.0.0.1", Port: 0, Role: types.NodeRoleMember}
	certA, err := ca.IssueNodeCertificate("a", []int{0}, nil, []net.IP{net.ParseIP("127.0.0.1")})
	require.NoError(t, err)

	memberA := cluster.New(types.ClusterMetadata{LocalNode: nodeA, BootstrapNodes: []types.Node{nodeA}})
	fabricA := comm.New(comm.Config{Membership: memberA, Cert: certA, RootCA: ca.GetRootCACert(), ListenAddr: "127.0.0.1:0"})
	require.NoError(t, fabricA.Open())
	t.Cleanup(func() { _ = fabricA.Close() })

	broker := New(fabricA, memberA)
	sub := broker.Subscribe("node.joined")
	defer broker.Unsubscribe("node.joined", sub)

	require.NoError(t, broker.Publish("node.joined", map[string]string{"node_id": "n1"}))

	select {
	case evt := <-sub:
		require.Equal(t, "node.joined", evt.Topic)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(evt.Data, &payload))
		require.Equal(t, "n1", payload["node_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ca := security.NewCertAuthority(store)
	require.NoError(t, ca.Initialize())

	nodeA := types.Node{ID: "a", Host: "127.0.0.1", Port: 0, Role: types.NodeRoleMember}
	certA, err := ca.IssueNodeCertificate("a", []int{0}, nil, []net.IP{net.ParseIP("127.0.0.1")})
	require.NoError(t, err)

	memberA := cluster.New(types.ClusterMetadata{LocalNode: nodeA, BootstrapNodes: []types.Node{nodeA}})
	fabricA := comm.New(comm.Config{Membership: memberA, Cert: certA, RootCA: ca.GetRootCACert(), ListenAddr: "127.0.0.1:0"})
	require.NoError(t, fabricA.Open())
	t.Cleanup(func() { _ = fabricA.Close() })

	broker := New(fabricA, memberA)
	sub := broker.Subscribe("t")
	require.Equal(t, 1, broker.SubscriberCount("t"))

	broker.Unsubscribe("t", sub)
	require.Equal(t, 0, broker.SubscriberCount("t"))

	_, ok := <-sub
	require.False(t, ok)
}
