/*
Package rsm implements the replicated service manager: the subsystem that
applies a committed, gap-free log of entries to one or more user-defined
replicated services, while managing client sessions, periodic snapshots, and
log compaction.

	┌────────────────────── CONSENSUS LAYER (external) ──────────────────────┐
	│            leader election · log replication · commit index            │
	└───────────────────────────────┬──────────────────────────────────────┘
	                                 │ applyAll(index) / apply(index)
	┌────────────────────────────────▼──────────────────────────────────────┐
	│                         ServiceManager (server context)                │
	│   pending-result map · lastEnqueued · snapshot/compaction scheduler    │
	└───────────────────────────────┬──────────────────────────────────────┘
	                                 │ task hop
	┌────────────────────────────────▼──────────────────────────────────────┐
	│                      ServiceContext (state context)                   │
	│   SessionRegistry · ServiceRegistry · per-service user instance        │
	└─────────────────────────────────────────────────────────────────────┘

The package deliberately knows nothing about transport, on-disk log storage,
or snapshot persistence: those are injected as the LogFacade and SnapshotStore
abstractions so this core can be driven by any consensus implementation that
can hand it a committed index and a readable log.
*/
package rsm
