/*
Package metrics defines and registers the Prometheus metrics exported by the
replicated service manager, and provides small helpers (Handler, Timer)
used by pkg/statusserver and pkg/rsm.

Metrics are grouped by the subsystem that produces them:

  - Apply pipeline: rsm_apply_duration_seconds, rsm_commands_total,
    rsm_queries_total, rsm_duplicate_commands_total, rsm_last_applied_index.
  - Sessions/services: rsm_sessions_active, rsm_services_active,
    rsm_sessions_expired_total.
  - Load monitor: rsm_load_event_rate, rsm_high_load.
  - Snapshot/compaction: rsm_snapshot_duration_seconds, rsm_snapshots_total,
    rsm_compactions_total, rsm_compaction_duration_seconds,
    rsm_snapshots_abandoned_total.

All gauges/counters/histograms are registered once at package init and
exposed over HTTP via Handler(), mounted by pkg/statusserver at /metrics.
*/
package metrics
