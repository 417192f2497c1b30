package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atomix_nodes_total",
			Help: "Total number of known cluster nodes by role and liveness",
		},
		[]string{"role", "reachable"},
	)

	PartitionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "atomix_partitions_total",
			Help: "Total number of partitions in the topology",
		},
	)

	PartitionsLocal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "atomix_partitions_local",
			Help: "Number of partitions with a local Raft participant",
		},
	)

	// Raft metrics, one series per locally-hosted partition
	RaftLeader = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atomix_raft_is_leader",
			Help: "Whether this node is the Raft leader for a partition (1 = leader, 0 = follower)",
		},
		[]string{"partition"},
	)

	RaftPeers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atomix_raft_peers_total",
			Help: "Total number of Raft peers for a partition",
		},
		[]string{"partition"},
	)

	RaftAppliedIndex = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atomix_raft_applied_index",
			Help: "Last applied Raft log index for a partition",
		},
		[]string{"partition"},
	)

	RaftApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atomix_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry, by partition",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"partition"},
	)

	// Session manager metrics
	SessionsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atomix_sessions_open",
			Help: "Number of open sessions by partition",
		},
		[]string{"partition"},
	)

	SessionsSuspended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atomix_sessions_suspended_total",
			Help: "Total number of sessions that transitioned to SUSPENDED",
		},
		[]string{"partition"},
	)

	SessionsExpired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atomix_sessions_expired_total",
			Help: "Total number of sessions that transitioned to EXPIRED",
		},
		[]string{"partition"},
	)

	KeepAlivesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atomix_session_keepalives_total",
			Help: "Total number of session keepalives sent",
		},
		[]string{"partition"},
	)

	// Proxy stack metrics
	ProxyRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atomix_proxy_retries_total",
			Help: "Total number of operations retried by the Retrying adapter, by error kind",
		},
		[]string{"kind"},
	)

	ProxyRecoveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "atomix_proxy_recoveries_total",
			Help: "Total number of session recoveries performed by the Recovering adapter",
		},
	)

	ProxyOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atomix_proxy_operation_duration_seconds",
			Help:    "End-to-end primitive operation duration as observed by the proxy stack",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"primitive_type"},
	)

	// Primitive service metrics
	PrimitivesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atomix_primitives_total",
			Help: "Total number of primitives by type",
		},
		[]string{"type"},
	)

	// Composition root lifecycle metrics
	LifecycleStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atomix_lifecycle_step_duration_seconds",
			Help:    "Time taken for an open/close lifecycle step",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step", "direction"},
	)
)

func init() {
	prometheus.MustRegister(
		NodesTotal,
		PartitionsTotal,
		PartitionsLocal,
		RaftLeader,
		RaftPeers,
		RaftAppliedIndex,
		RaftApplyDuration,
		SessionsOpen,
		SessionsSuspended,
		SessionsExpired,
		KeepAlivesTotal,
		ProxyRetriesTotal,
		ProxyRecoveriesTotal,
		ProxyOperationDuration,
		PrimitivesTotal,
		LifecycleStepDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
