// Package snapshotstore implements rsm.SnapshotStore as a directory of
// finalized snapshot files, one per completed cycle, pruned to the most
// recent N. It is deliberately a separate store from Raft's own
// raft.FileSnapshotStore (which the clusterhost wires independently for
// Raft's membership/log snapshots): this one holds the rsm core's
// service-level state, not Raft's.
//
// Grounded on raft.FileSnapshotStore's write-to-temp-then-rename discipline
// and retain-N pruning, simplified to a single opaque byte stream per
// snapshot instead of a metadata.json plus state file pair — the core's own
// SnapshotRecord framing (pkg/rsm/snapshot.go) already carries everything a
// reader needs to know about what's inside.
package snapshotstore
