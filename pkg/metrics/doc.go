/*
Package metrics provides Prometheus metrics collection and exposition for
the coordination runtime.

Metrics are package-level prometheus.Collector values registered in init;
callers set/observe them directly (metrics.RaftLeader.WithLabelValues("1").Set(1))
rather than going through an indirection layer. Handler exposes the
standard promhttp handler for the composition root's optional REST
surface.

# Metric Families

  - atomix_nodes_total{role,reachable}: known cluster membership
  - atomix_partitions_total / atomix_partitions_local: topology size and local share
  - atomix_raft_is_leader{partition}, atomix_raft_peers_total{partition},
    atomix_raft_applied_index{partition}, atomix_raft_apply_duration_seconds{partition}
  - atomix_sessions_open{partition}, atomix_sessions_suspended_total{partition},
    atomix_sessions_expired_total{partition}, atomix_session_keepalives_total{partition}
  - atomix_proxy_retries_total{kind}, atomix_proxy_recoveries_total,
    atomix_proxy_operation_duration_seconds{primitive_type}
  - atomix_primitives_total{type}
  - atomix_lifecycle_step_duration_seconds{step,direction}

The package has no component health registry: the REST surface's health
and readiness handlers (pkg/atomix) compute their answers directly.
*/
package metrics
