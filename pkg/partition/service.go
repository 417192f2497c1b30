package partition

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/log"
	"github.com/coreward/atomix/pkg/metrics"
	"github.com/coreward/atomix/pkg/types"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// StateMachineFactory builds the state machine a partition replicates.
// Called once per locally-hosted partition at open() time.
type StateMachineFactory func(id types.PartitionID) StateMachine

// Config configures the partition service.
type Config struct {
	Local     types.Node
	Topology  types.PartitionTopology
	DataDir   string
	NewMachine StateMachineFactory

	HeartbeatTimeout   time.Duration
	ElectionTimeout    time.Duration
	LeaderLeaseTimeout time.Duration
	CommitTimeout      time.Duration
	ApplyTimeout       time.Duration
}

func (c *Config) setDefaults() {
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = 500 * time.Millisecond
	}
	if c.ElectionTimeout == 0 {
		c.ElectionTimeout = 500 * time.Millisecond
	}
	if c.LeaderLeaseTimeout == 0 {
		c.LeaderLeaseTimeout = 250 * time.Millisecond
	}
	if c.CommitTimeout == 0 {
		c.CommitTimeout = 50 * time.Millisecond
	}
	if c.ApplyTimeout == 0 {
		c.ApplyTimeout = 5 * time.Second
	}
}

// Service owns the set of replica groups.
type Service struct {
	cfg       Config
	mu        sync.RWMutex
	handles   map[types.PartitionID]*Handle
	opened    bool
	collector *MetricsCollector
}

// New creates a partition service for the given topology. It does not open
// any partitions until Open is called.
func New(cfg Config) *Service {
	cfg.setDefaults()
	return &Service{
		cfg:     cfg,
		handles: make(map[types.PartitionID]*Handle),
	}
}

// Open brings up every partition in parallel; completion waits for all. If
// any partition fails, the ones that did open are closed, in reverse
// open order, before the error surfaces.
func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return nil
	}

	l := log.WithComponent("partition")

	ids := make([]types.PartitionID, 0, len(s.cfg.Topology.Partitions))
	for _, pm := range s.cfg.Topology.Partitions {
		ids = append(ids, pm.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	type openResult struct {
		id     types.PartitionID
		handle *Handle
		err    error
	}

	results := make(chan openResult, len(ids))
	var wg sync.WaitGroup
	for _, pm := range s.cfg.Topology.Partitions {
		pm := pm
		wg.Add(1)
		go func() {
			defer wg.Done()
			timer := metrics.NewTimer()
			h, err := s.openOne(pm)
			timer.ObserveDurationVec(metrics.LifecycleStepDuration, "partition", "open")
			results <- openResult{id: pm.ID, handle: h, err: err}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	opened := make([]*Handle, 0, len(ids))
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			l.Error().Err(r.err).Int("partition", int(r.id)).Msg("partition failed to open")
			continue
		}
		s.handles[r.id] = r.handle
		opened = append(opened, r.handle)
	}

	if firstErr != nil {
		for i := len(opened) - 1; i >= 0; i-- {
			_ = opened[i].close()
		}
		s.handles = make(map[types.PartitionID]*Handle)
		return fmt.Errorf("partition service open: %w", firstErr)
	}

	metrics.PartitionsTotal.Set(float64(len(s.cfg.Topology.Partitions)))
	metrics.PartitionsLocal.Set(float64(len(s.handles)))

	s.opened = true
	s.collector = NewMetricsCollector(s)
	s.collector.Start()
	l.Info().Int("local_partitions", len(s.handles)).Msg("partition service open")
	return nil
}

func (s *Service) openOne(pm types.PartitionMetadata) (*Handle, error) {
	dataDir := filepath.Join(s.cfg.DataDir, "partitions", fmt.Sprintf("%d", pm.ID))
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, atomixerr.Newf(atomixerr.Unavailable, "create partition data dir: %v", err)
	}

	member := false
	for _, id := range pm.Members {
		if id == s.cfg.Local.ID {
			member = true
			break
		}
	}

	h := &Handle{
		id:       pm.ID,
		members:  pm.Members,
		dataDir:  dataDir,
		isMember: member,
	}

	if !member {
		// Pure client view: no local Raft participant.
		return h, nil
	}

	sm := s.cfg.NewMachine(pm.ID)
	fsm := NewFSM(sm)
	h.sm = sm

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(s.cfg.Local.ID)
	raftCfg.HeartbeatTimeout = s.cfg.HeartbeatTimeout
	raftCfg.ElectionTimeout = s.cfg.ElectionTimeout
	raftCfg.LeaderLeaseTimeout = s.cfg.LeaderLeaseTimeout
	raftCfg.CommitTimeout = s.cfg.CommitTimeout
	raftCfg.Logger = nil

	bindAddr := s.cfg.Local.Endpoint()
	addr, err := net.ResolveTCPAddr("tcp", bindAddr)
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.ConfigurationInvalid, "resolve bind address: %v", err)
	}

	transport, err := raft.NewTCPTransport(bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.Unavailable, "create raft transport: %v", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(dataDir, 2, os.Stderr)
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.Unavailable, "create snapshot store: %v", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-log.db"))
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.Unavailable, "create log store: %v", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-stable.db"))
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.Unavailable, "create stable store: %v", err)
	}

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.Unavailable, "create raft participant: %v", err)
	}

	h.raft = r
	h.transport = transport
	h.applyTimeout = s.cfg.ApplyTimeout

	hasState, err := raft.HasExistingState(logStore, stableStore, snapshotStore)
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.Unavailable, "inspect existing raft state: %v", err)
	}
	if !hasState && isBootstrapLeader(pm, s.cfg.Local.ID) {
		servers := make([]raft.Server, 0, len(pm.Members))
		for _, id := range pm.Members {
			servers = append(servers, raft.Server{ID: raft.ServerID(id), Address: raft.ServerAddress(bindAddr)})
		}
		future := r.BootstrapCluster(raft.Configuration{Servers: servers})
		if err := future.Error(); err != nil {
			return nil, atomixerr.Newf(atomixerr.Unavailable, "bootstrap partition %d: %v", pm.ID, err)
		}
	}

	return h, nil
}

// isBootstrapLeader picks the lexicographically-first member as the node
// responsible for issuing the one-time BootstrapCluster call, so that
// every member in the replica set races to open() without a separate
// leader-election handshake beforehand.
func isBootstrapLeader(pm types.PartitionMetadata, local types.NodeID) bool {
	first := pm.Members[0]
	for _, id := range pm.Members[1:] {
		if id < first {
			first = id
		}
	}
	return first == local
}

// Partition returns the handle for id.
func (s *Service) Partition(id types.PartitionID) (*Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[id]
	return h, ok
}

// Partitions returns all handles ordered by id.
func (s *Service) Partitions() []*Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Close closes all partitions, releasing their data directory locks.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil
	}

	if s.collector != nil {
		s.collector.Stop()
	}

	var firstErr error
	for _, h := range s.handles {
		if err := h.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.opened = false
	return firstErr
}
