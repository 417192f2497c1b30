package health

import (
	"context"
	"sync"
	"time"

	"github.com/coreward/atomix/pkg/cluster"
	"github.com/coreward/atomix/pkg/log"
	"github.com/rs/zerolog"
)

// Prober periodically TCP-dials every cluster member and records
// reachability in a Membership. Only Membership's liveness view changes:
// leader hints and request routing do not read it.
type Prober struct {
	membership *cluster.Membership
	interval   time.Duration
	timeout    time.Duration
	logger     zerolog.Logger

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewProber returns a Prober that checks membership's members every
// interval, dialing each with the given per-check timeout.
func NewProber(membership *cluster.Membership, interval, timeout time.Duration) *Prober {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{
		membership: membership,
		interval:   interval,
		timeout:    timeout,
		logger:     log.WithComponent("prober"),
	}
}

// Start begins the probe loop in a background goroutine. Start is a
// no-op if the prober is already running.
func (p *Prober) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh != nil {
		return
	}
	p.stopCh = make(chan struct{})
	go p.run(p.stopCh)
}

// Stop ends the probe loop. Stop is a no-op if the prober was never
// started or has already been stopped.
func (p *Prober) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh == nil {
		return
	}
	close(p.stopCh)
	p.stopCh = nil
}

func (p *Prober) run(stopCh chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().Dur("interval", p.interval).Msg("liveness prober started")

	for {
		select {
		case <-ticker.C:
			p.probeAll()
		case <-stopCh:
			p.logger.Info().Msg("liveness prober stopped")
			return
		}
	}
}

func (p *Prober) probeAll() {
	local := p.membership.Local()
	for _, m := range p.membership.Members() {
		if m.Node.ID == local.ID {
			continue
		}
		node := m.Node
		go func() {
			reachable := p.probeOne(node.Endpoint())
			p.membership.UpdateLiveness(node.ID, reachable)
			if !reachable {
				p.logger.Debug().Str("node", string(node.ID)).Str("addr", node.Endpoint()).Msg("node unreachable")
			}
		}()
	}
}

func (p *Prober) probeOne(addr string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	checker := NewTCPChecker(addr)
	checker.Timeout = p.timeout
	return checker.Check(ctx).Healthy
}
