package primitive

import (
	"encoding/json"
	"testing"

	"github.com/coreward/atomix/pkg/session"
	"github.com/coreward/atomix/pkg/types"
	"github.com/stretchr/testify/require"
)

func commandBytes(t *testing.T, sessionID types.SessionID, seq uint64, env Envelope) []byte {
	t.Helper()
	op, err := json.Marshal(env)
	require.NoError(t, err)
	cmd := session.Command{SessionID: sessionID, Sequence: seq, Payload: op}
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	return data
}

func TestMachineDispatchesByNameAndType(t *testing.T) {
	m := NewMachine(NewDefaultRegistry())

	put := commandBytes(t, 1, 1, Envelope{
		Type: types.PrimitiveTypeMap,
		Name: "config",
		Op:   mustJSON(t, mapOp{Op: "put", Key: "a", Value: "1"}),
	})
	resp, err := m.Apply(put)
	require.NoError(t, err)

	var mr mapResult
	require.NoError(t, json.Unmarshal(resp, &mr))
	require.False(t, mr.Found)

	get := commandBytes(t, 1, 2, Envelope{
		Type: types.PrimitiveTypeMap,
		Name: "config",
		Op:   mustJSON(t, mapOp{Op: "get", Key: "a"}),
	})
	resp, err = m.Apply(get)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(resp, &mr))
	require.True(t, mr.Found)
	require.Equal(t, "1", mr.Value)
}

func TestMachineDeduplicatesRetriedSequence(t *testing.T) {
	m := NewMachine(NewDefaultRegistry())

	incr := func() []byte {
		return commandBytes(t, 5, 1, Envelope{
			Type: types.PrimitiveTypeCounter,
			Name: "requests",
			Op:   mustJSON(t, counterOp{Op: "incrementAndGet"}),
		})
	}

	first, err := m.Apply(incr())
	require.NoError(t, err)

	var cr counterResult
	require.NoError(t, json.Unmarshal(first, &cr))
	require.Equal(t, int64(1), cr.Value)

	// Same session, same sequence: must not apply twice.
	second, err := m.Apply(incr())
	require.NoError(t, err)
	require.Equal(t, first, second)

	get := commandBytes(t, 5, 2, Envelope{
		Type: types.PrimitiveTypeCounter,
		Name: "requests",
		Op:   mustJSON(t, counterOp{Op: "get"}),
	})
	resp, err := m.Apply(get)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(resp, &cr))
	require.Equal(t, int64(1), cr.Value)
}

func TestMachineSnapshotRestoreRoundTrips(t *testing.T) {
	m := NewMachine(NewDefaultRegistry())

	_, err := m.Apply(commandBytes(t, 1, 1, Envelope{
		Type: types.PrimitiveTypeMap,
		Name: "config",
		Op:   mustJSON(t, mapOp{Op: "put", Key: "a", Value: "1"}),
	}))
	require.NoError(t, err)

	snap, err := m.Snapshot()
	require.NoError(t, err)

	restored := NewMachine(NewDefaultRegistry())
	require.NoError(t, restored.Restore(snap))

	require.Equal(t, []string{"config"}, restored.Names(types.PrimitiveTypeMap))

	resp, err := restored.Apply(commandBytes(t, 2, 1, Envelope{
		Type: types.PrimitiveTypeMap,
		Name: "config",
		Op:   mustJSON(t, mapOp{Op: "get", Key: "a"}),
	}))
	require.NoError(t, err)

	var mr mapResult
	require.NoError(t, json.Unmarshal(resp, &mr))
	require.True(t, mr.Found)
	require.Equal(t, "1", mr.Value)
}

func TestMachineQueryReadsWithoutEnvelopeWrapper(t *testing.T) {
	m := NewMachine(NewDefaultRegistry())

	_, err := m.Apply(commandBytes(t, 1, 1, Envelope{
		Type: types.PrimitiveTypeMap,
		Name: "config",
		Op:   mustJSON(t, mapOp{Op: "put", Key: "a", Value: "1"}),
	}))
	require.NoError(t, err)

	env, err := json.Marshal(Envelope{
		Type: types.PrimitiveTypeMap,
		Name: "config",
		Op:   mustJSON(t, mapOp{Op: "get", Key: "a"}),
	})
	require.NoError(t, err)

	resp, err := m.Query(env)
	require.NoError(t, err)

	var mr mapResult
	require.NoError(t, json.Unmarshal(resp, &mr))
	require.True(t, mr.Found)
	require.Equal(t, "1", mr.Value)

	// Querying an untouched name reads a fresh empty instance without
	// registering it as a name Apply would later list.
	neverBuilt, err := json.Marshal(Envelope{
		Type: types.PrimitiveTypeMap,
		Name: "never-built",
		Op:   mustJSON(t, mapOp{Op: "containsKey", Key: "a"}),
	})
	require.NoError(t, err)

	resp, err = m.Query(neverBuilt)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(resp, &mr))
	require.False(t, mr.Found)
	require.Equal(t, []string{"config"}, m.Names(types.PrimitiveTypeMap))
}

func TestMachineUnknownTypeErrors(t *testing.T) {
	m := NewMachine(NewRegistry())
	_, err := m.Apply(commandBytes(t, 1, 1, Envelope{
		Type: types.PrimitiveTypeMap,
		Name: "config",
		Op:   mustJSON(t, mapOp{Op: "put", Key: "a", Value: "1"}),
	}))
	require.Error(t, err)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
