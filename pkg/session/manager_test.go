package session

import (
	"context"
	"sync"
	"testing"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/types"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu       sync.Mutex
	leader   bool
	hint     types.NodeID
	applied  [][]byte
	applyErr error
	pingErr  error
	queryErr error
	queried  []byte
}

func (f *fakeClient) Apply(_ context.Context, cmd []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	f.applied = append(f.applied, cmd)
	return []byte("ok"), nil
}

func (f *fakeClient) Query(_ context.Context, payload []byte, _ types.ReadConsistency) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	f.queried = payload
	return []byte("ok"), nil
}

func (f *fakeClient) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeClient) IsLeader() bool          { return f.leader }
func (f *fakeClient) LeaderHint() string      { return string(f.hint) }
func (f *fakeClient) Members() []types.NodeID { return nil }

func TestManagerOpenReusesSession(t *testing.T) {
	client := &fakeClient{leader: true}
	m := NewManager(Config{
		NewClient: func(types.PartitionID, types.NodeID) (PartitionClient, error) { return client, nil },
	})
	defer m.Close()

	s1, err := m.Open("c1", 1)
	require.NoError(t, err)
	s2, err := m.Open("c1", 1)
	require.NoError(t, err)
	require.Same(t, s1, s2)
}

func TestManagerSubmitOrdersSequence(t *testing.T) {
	client := &fakeClient{leader: true}
	m := NewManager(Config{
		NewClient: func(types.PartitionID, types.NodeID) (PartitionClient, error) { return client, nil },
	})
	defer m.Close()

	s, err := m.Open("c1", 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.Submit(context.Background(), []byte("x"))
		require.NoError(t, err)
	}
	require.Equal(t, uint64(3), s.seq.Load())
}

func TestSessionSubmitAfterExpiredFails(t *testing.T) {
	client := &fakeClient{leader: true}
	m := NewManager(Config{
		NewClient: func(types.PartitionID, types.NodeID) (PartitionClient, error) { return client, nil },
	})
	defer m.Close()

	s, err := m.Open("c1", 1)
	require.NoError(t, err)
	s.setState(types.SessionExpired)

	_, err = s.Submit(context.Background(), []byte("x"))
	require.Error(t, err)
	require.True(t, atomixerr.Is(err, atomixerr.SessionExpired))
}

func TestManagerUpdateLeaderHint(t *testing.T) {
	m := NewManager(Config{
		NewClient: func(types.PartitionID, types.NodeID) (PartitionClient, error) { return &fakeClient{}, nil },
	})
	defer m.Close()

	require.Equal(t, types.NodeID(""), m.LeaderHint(1))
	m.UpdateLeaderHint(1, "node-2")
	require.Equal(t, types.NodeID("node-2"), m.LeaderHint(1))
}

func TestManagerSubmitCachesHintOnNotLeader(t *testing.T) {
	client := &fakeClient{leader: false, applyErr: atomixerr.Newf(atomixerr.LeaderUnknown, "not leader"), hint: "node-2"}
	m := NewManager(Config{
		NewClient: func(types.PartitionID, types.NodeID) (PartitionClient, error) { return client, nil },
	})
	defer m.Close()

	_, err := m.Submit(context.Background(), "c1", 1, []byte("x"))
	require.Error(t, err)
	require.Equal(t, types.NodeID("node-2"), m.LeaderHint(1))
}

func TestManagerQueryServesThroughSameSession(t *testing.T) {
	client := &fakeClient{leader: true}
	m := NewManager(Config{
		NewClient: func(types.PartitionID, types.NodeID) (PartitionClient, error) { return client, nil },
	})
	defer m.Close()

	resp, err := m.Query(context.Background(), "c1", 1, []byte("op"), types.Sequential)
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), resp)
	require.Equal(t, []byte("op"), client.queried)
}

func TestManagerCloseIsIdempotentWithNoSessions(t *testing.T) {
	m := NewManager(Config{
		NewClient: func(types.PartitionID, types.NodeID) (PartitionClient, error) { return &fakeClient{}, nil },
	})
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
