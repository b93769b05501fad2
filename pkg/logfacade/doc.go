// Package logfacade implements rsm.LogFacade over the same BoltDB-backed
// raft log store the consensus host appends through. It never writes log
// entries itself — replication and append are hashicorp/raft's job via
// clusterhost — it only reads committed entries back out and prunes the
// prefix once the core asks for compaction.
//
// A small side bucket (distinct from raft-boltdb's own log/stable buckets)
// persists the last index compaction actually reached, following the
// teacher's CreateBucketIfNotExists/Update/View bbolt idiom, so a restart
// can tell a never-compacted log apart from one that simply hasn't grown
// past its last checkpoint.
package logfacade
