// Package clusterhost stands up the hashicorp/raft consensus layer the rsm
// core assumes exists underneath it: a *raft.Raft instance over a TCP
// transport, a raft-boltdb log/stable store, and raft's own
// raft.FileSnapshotStore for membership snapshots. It wraps that instance in
// a raft.FSM thin enough to do nothing but decode-and-dispatch: Apply hands
// each committed index to the rsm ServiceManager, which pulls its own entry
// out of the shared log store via pkg/logfacade rather than being handed the
// raft.Log directly; Snapshot/Restore delegate wholesale to the
// ServiceManager's own snapshot stream.
//
// Grounded on the teacher's pkg/manager/manager.go Bootstrap/Join
// construction sequence and pkg/manager/fsm.go's WarrenFSM shape.
package clusterhost
