package partition

import (
	"strconv"
	"time"

	"github.com/coreward/atomix/pkg/metrics"
)

// MetricsCollector periodically polls Raft statistics from every
// locally-hosted partition and publishes them to Prometheus. Adapted from
// the cluster-wide collector pattern, scoped down to one series per
// partition instead of one process-wide gauge.
type MetricsCollector struct {
	service *Service
	stopCh  chan struct{}
}

// NewMetricsCollector creates a collector over svc.
func NewMetricsCollector(svc *Service) *MetricsCollector {
	return &MetricsCollector{
		service: svc,
		stopCh:  make(chan struct{}),
	}
}

// Start begins polling on a fixed interval. Non-blocking.
func (c *MetricsCollector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts polling.
func (c *MetricsCollector) Stop() {
	close(c.stopCh)
}

func (c *MetricsCollector) collect() {
	for _, h := range c.service.Partitions() {
		label := strconv.Itoa(int(h.ID()))
		stats := h.Stats()

		if stats.IsLeader {
			metrics.RaftLeader.WithLabelValues(label).Set(1)
		} else {
			metrics.RaftLeader.WithLabelValues(label).Set(0)
		}
		metrics.RaftAppliedIndex.WithLabelValues(label).Set(float64(stats.AppliedIndex))
		metrics.RaftPeers.WithLabelValues(label).Set(float64(stats.Peers))
	}
}
