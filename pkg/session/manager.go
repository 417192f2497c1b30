package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/coreward/atomix/pkg/atomixerr"
	"github.com/coreward/atomix/pkg/log"
	"github.com/coreward/atomix/pkg/metrics"
	"github.com/coreward/atomix/pkg/types"
)

// ClientFactory resolves the PartitionClient a new session on the given
// partition should submit through. hint is the cached suspected leader
// for the partition, if any (see Manager.LeaderHint); the composition
// root uses it to target the client at the node most likely to be
// leading instead of discovering it from scratch. This package never
// has to know whether a partition is local or remote.
type ClientFactory func(partitionID types.PartitionID, hint types.NodeID) (PartitionClient, error)

// Config configures the session manager.
type Config struct {
	NewClient      ClientFactory
	SessionTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.SessionTimeout == 0 {
		c.SessionTimeout = 30 * time.Second
	}
}

type sessionKey struct {
	clientID    string
	partitionID types.PartitionID
}

// Manager maintains a pool of sessions, one per (client id, partition)
// pair, and tracks a suspected leader hint per partition.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[sessionKey]*Session
	nextID   types.SessionID

	leaderMu sync.RWMutex
	leaders  map[types.PartitionID]types.NodeID

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	cfg.setDefaults()
	return &Manager{
		cfg:      cfg,
		sessions: make(map[sessionKey]*Session),
		leaders:  make(map[types.PartitionID]types.NodeID),
		stopCh:   make(chan struct{}),
	}
}

// Open returns the session for (clientID, partitionID), opening a new one
// if none exists yet or the existing one is EXPIRED.
func (m *Manager) Open(clientID string, partitionID types.PartitionID) (*Session, error) {
	key := sessionKey{clientID, partitionID}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[key]; ok && existing.State() != types.SessionExpired {
		return existing, nil
	}

	client, err := m.cfg.NewClient(partitionID, m.LeaderHint(partitionID))
	if err != nil {
		return nil, atomixerr.Newf(atomixerr.Unavailable, "resolve partition client: %v", err)
	}

	m.nextID++
	s := &Session{
		ID:           m.nextID,
		ClientID:     clientID,
		PartitionID:  partitionID,
		state:        types.SessionOpen,
		client:       client,
		timeout:      m.cfg.SessionTimeout,
		lastActivity: time.Now(),
	}
	s.reportHint = func(hint types.NodeID) { m.UpdateLeaderHint(partitionID, hint) }
	m.sessions[key] = s

	metrics.SessionsOpen.WithLabelValues(partitionLabel(partitionID)).Inc()

	m.wg.Add(1)
	go m.keepalive(s)

	return s, nil
}

// Submit opens a session for (clientID, partitionID) if needed and
// submits payload through it. Every session opened through Manager.Open
// reports a NotLeader(hint) straight back into the leader cache (see
// Session.reportHint), so the next Open for this partition - on this or
// any other session - targets the suspected leader directly instead of
// round-robining from scratch.
func (m *Manager) Submit(ctx context.Context, clientID string, partitionID types.PartitionID, payload []byte) ([]byte, error) {
	s, err := m.Open(clientID, partitionID)
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, payload)
}

// Query opens a session for (clientID, partitionID) if needed and serves
// payload at the requested consistency through it.
func (m *Manager) Query(ctx context.Context, clientID string, partitionID types.PartitionID, payload []byte, consistency types.ReadConsistency) ([]byte, error) {
	s, err := m.Open(clientID, partitionID)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, payload, consistency)
}

// LeaderHint returns the cached suspected leader for partitionID, or ""
// if none is cached.
func (m *Manager) LeaderHint(partitionID types.PartitionID) types.NodeID {
	m.leaderMu.RLock()
	defer m.leaderMu.RUnlock()
	return m.leaders[partitionID]
}

// UpdateLeaderHint records hint as the suspected leader for partitionID,
// called on receipt of a NotLeader(hint) response.
func (m *Manager) UpdateLeaderHint(partitionID types.PartitionID, hint types.NodeID) {
	m.leaderMu.Lock()
	m.leaders[partitionID] = hint
	m.leaderMu.Unlock()
}

func (m *Manager) keepalive(s *Session) {
	defer m.wg.Done()

	interval := s.timeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l := log.WithSessionID(uint64(s.ID))
	label := partitionLabel(s.PartitionID)

	for {
		select {
		case <-ticker.C:
			if s.State() == types.SessionClosed {
				return
			}

			if s.idleSince() < interval {
				continue
			}

			metrics.KeepAlivesTotal.WithLabelValues(label).Inc()

			if err := s.client.Ping(context.Background()); err != nil {
				if atomixerr.Is(err, atomixerr.SessionExpired) {
					s.setState(types.SessionExpired)
					metrics.SessionsExpired.WithLabelValues(label).Inc()
					metrics.SessionsOpen.WithLabelValues(label).Dec()
					l.Warn().Msg("session expired")
					return
				}

				if s.idleSince() > s.timeout {
					s.setState(types.SessionSuspended)
					metrics.SessionsSuspended.WithLabelValues(label).Inc()
					l.Warn().Msg("session suspended, leader unreachable within timeout")
				}
				continue
			}

			s.touch()
			if s.State() == types.SessionSuspended {
				s.setState(types.SessionOpen)
				l.Info().Msg("session recovered, leader rediscovered")
			}

		case <-m.stopCh:
			return
		}
	}
}

// Close stops all keepalive loops and marks every session CLOSED. Calling
// it again is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.stopCh:
		return nil
	default:
	}
	close(m.stopCh)
	m.wg.Wait()

	for _, s := range m.sessions {
		s.setState(types.SessionClosed)
	}
	return nil
}

func partitionLabel(id types.PartitionID) string {
	return strconv.Itoa(int(id))
}
