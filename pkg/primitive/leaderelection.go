package primitive

import "encoding/json"

type leaderElectionOp struct {
	Op        string `json:"op"`
	Candidate string `json:"candidate"`
}

type leaderElectionResult struct {
	Leader     string   `json:"leader,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

// leaderElectionInstance tracks a FIFO queue of candidates. The leader is
// always the front of the queue; withdrawing the leader promotes the next
// candidate.
type leaderElectionInstance struct {
	candidates []string
}

func newLeaderElectionInstance() *leaderElectionInstance {
	return &leaderElectionInstance{}
}

func (e *leaderElectionInstance) leader() string {
	if len(e.candidates) == 0 {
		return ""
	}
	return e.candidates[0]
}

func (e *leaderElectionInstance) Apply(data []byte) ([]byte, error) {
	var op leaderElectionOp
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, err
	}

	switch op.Op {
	case "run":
		for _, c := range e.candidates {
			if c == op.Candidate {
				return e.result(), nil
			}
		}
		e.candidates = append(e.candidates, op.Candidate)
		return e.result(), nil
	case "withdraw":
		for i, c := range e.candidates {
			if c == op.Candidate {
				e.candidates = append(e.candidates[:i], e.candidates[i+1:]...)
				break
			}
		}
		return e.result(), nil
	case "getLeadership":
		return e.result(), nil
	default:
		return nil, unknownOp("leader-election", op.Op)
	}
}

func (e *leaderElectionInstance) result() []byte {
	data, _ := json.Marshal(leaderElectionResult{
		Leader:     e.leader(),
		Candidates: e.candidates,
	})
	return data
}

// Query serves getLeadership without submitting through Raft.
func (e *leaderElectionInstance) Query(data []byte) ([]byte, error) {
	var op leaderElectionOp
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, err
	}

	if op.Op != "getLeadership" {
		return nil, notAQuery("leader-election", op.Op)
	}
	return e.result(), nil
}

func (e *leaderElectionInstance) Snapshot() ([]byte, error) {
	return json.Marshal(leaderElectionResult{Candidates: e.candidates})
}

func (e *leaderElectionInstance) Restore(data []byte) error {
	var res leaderElectionResult
	if len(data) > 0 {
		if err := json.Unmarshal(data, &res); err != nil {
			return err
		}
	}
	e.candidates = res.Candidates
	return nil
}
