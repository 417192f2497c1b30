package primitive

import "encoding/json"

// mapOp is the operation envelope a Map client sends.
type mapOp struct {
	Op    string `json:"op"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
}

type mapResult struct {
	Found bool   `json:"found"`
	Value string `json:"value,omitempty"`
	Size  int    `json:"size,omitempty"`
}

// mapInstance is a replicated string-keyed, string-valued map.
type mapInstance struct {
	entries map[string]string
}

func newMapInstance() *mapInstance {
	return &mapInstance{entries: make(map[string]string)}
}

func (m *mapInstance) Apply(data []byte) ([]byte, error) {
	var op mapOp
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, err
	}

	var res mapResult
	switch op.Op {
	case "put":
		_, existed := m.entries[op.Key]
		m.entries[op.Key] = op.Value
		res.Found = existed
	case "get":
		v, ok := m.entries[op.Key]
		res.Found = ok
		res.Value = v
	case "remove":
		v, ok := m.entries[op.Key]
		if ok {
			delete(m.entries, op.Key)
		}
		res.Found = ok
		res.Value = v
	case "containsKey":
		_, ok := m.entries[op.Key]
		res.Found = ok
	case "clear":
		m.entries = make(map[string]string)
	case "size":
		res.Size = len(m.entries)
	default:
		return nil, unknownOp("map", op.Op)
	}

	return json.Marshal(res)
}

// Query serves the read-only map operations (get/containsKey/size)
// without going through Apply, so a caller content with a Sequential or
// LinearizableLease read can avoid a Raft log round trip entirely.
func (m *mapInstance) Query(data []byte) ([]byte, error) {
	var op mapOp
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, err
	}

	var res mapResult
	switch op.Op {
	case "get":
		v, ok := m.entries[op.Key]
		res.Found = ok
		res.Value = v
	case "containsKey":
		_, ok := m.entries[op.Key]
		res.Found = ok
	case "size":
		res.Size = len(m.entries)
	default:
		return nil, notAQuery("map", op.Op)
	}

	return json.Marshal(res)
}

func (m *mapInstance) Snapshot() ([]byte, error) {
	return json.Marshal(m.entries)
}

func (m *mapInstance) Restore(data []byte) error {
	entries := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return err
		}
	}
	m.entries = entries
	return nil
}
