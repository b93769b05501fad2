package logfacade

import (
	"fmt"
	"path/filepath"

	"github.com/cuemby/rsmgr/pkg/rsm"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sys/unix"
)

var metaBucket = []byte("logfacade_meta")
var compactedIndexKey = []byte("compacted_index")

// Facade implements rsm.LogFacade over a raft-boltdb log store shared with
// the clusterhost's *raft.Raft instance, plus a small bbolt side bucket for
// the compaction checkpoint.
type Facade struct {
	dataDir string
	logs    *raftboltdb.BoltStore
	meta    *bolt.DB
}

// Open wires a Facade against dataDir, creating the log store and
// checkpoint database if they don't already exist. logs is also the
// raft.LogStore/raft.StableStore clusterhost hands to raft.NewRaft — the
// two must share the same underlying file so compaction here is visible to
// replication there.
func Open(dataDir string) (*Facade, *raftboltdb.BoltStore, error) {
	logPath := filepath.Join(dataDir, "raft-log.db")
	logs, err := raftboltdb.NewBoltStore(logPath)
	if err != nil {
		return nil, nil, fmt.Errorf("logfacade: open log store: %w", err)
	}

	metaPath := filepath.Join(dataDir, "logfacade-meta.db")
	meta, err := bolt.Open(metaPath, 0600, nil)
	if err != nil {
		logs.Close()
		return nil, nil, fmt.Errorf("logfacade: open meta store: %w", err)
	}
	err = meta.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		logs.Close()
		meta.Close()
		return nil, nil, fmt.Errorf("logfacade: init meta bucket: %w", err)
	}

	return &Facade{dataDir: dataDir, logs: logs, meta: meta}, logs, nil
}

// Close releases both underlying databases.
func (f *Facade) Close() error {
	metaErr := f.meta.Close()
	logErr := f.logs.Close()
	if logErr != nil {
		return logErr
	}
	return metaErr
}

func (f *Facade) FirstIndex() (uint64, error) {
	idx, err := f.logs.FirstIndex()
	if err != nil {
		return 0, fmt.Errorf("logfacade: first index: %w", err)
	}
	if idx == 0 {
		// An empty log store reports 0; the reader protocol starts at 1.
		return 1, nil
	}
	return idx, nil
}

// IsCompactable reports whether the log holds any entries below
// appliedIndex that haven't already been compacted away.
func (f *Facade) IsCompactable(appliedIndex uint64) bool {
	first, err := f.logs.FirstIndex()
	if err != nil || first == 0 {
		return false
	}
	last, err := f.logs.LastIndex()
	if err != nil || last == 0 {
		return false
	}
	return appliedIndex > first && appliedIndex <= last
}

// CompactableIndex returns the highest index compaction may reach, which is
// simply appliedIndex: the core never compacts past what it has applied.
func (f *Facade) CompactableIndex(appliedIndex uint64) uint64 {
	return appliedIndex
}

// Compact deletes the log prefix [firstIndex, index] and records index as
// the new checkpoint.
func (f *Facade) Compact(index uint64) error {
	first, err := f.logs.FirstIndex()
	if err != nil {
		return fmt.Errorf("logfacade: first index: %w", err)
	}
	if first == 0 || index < first {
		return nil
	}
	if err := f.logs.DeleteRange(first, index); err != nil {
		return fmt.Errorf("logfacade: delete range [%d,%d]: %w", first, index, err)
	}
	return f.meta.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		return b.Put(compactedIndexKey, encodeUint64(index))
	})
}

// CompactedIndex returns the last checkpointed compaction index, 0 if the
// log has never been compacted. Exposed for the status server.
func (f *Facade) CompactedIndex() (uint64, error) {
	var idx uint64
	err := f.meta.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		data := b.Get(compactedIndexKey)
		if data != nil {
			idx = decodeUint64(data)
		}
		return nil
	})
	return idx, err
}

// Reader returns a LogReader positioned at index.
func (f *Facade) Reader(index uint64) (rsm.LogReader, error) {
	if index == 0 {
		index = 1
	}
	return &logReader{logs: f.logs, next: index}, nil
}

// UsableDiskBytes / TotalDiskBytes back the disk-pressure calculation in the
// snapshot scheduler, queried via statfs on the data directory.
func (f *Facade) UsableDiskBytes() (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(f.dataDir, &stat); err != nil {
		return 0, fmt.Errorf("logfacade: statfs: %w", err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

func (f *Facade) TotalDiskBytes() (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(f.dataDir, &stat); err != nil {
		return 0, fmt.Errorf("logfacade: statfs: %w", err)
	}
	return int64(stat.Blocks) * int64(stat.Bsize), nil
}

type logReader struct {
	logs *raftboltdb.BoltStore
	next uint64
}

func (r *logReader) Next() (rsm.LogEntry, bool, error) {
	last, err := r.logs.LastIndex()
	if err != nil {
		return rsm.LogEntry{}, false, fmt.Errorf("logfacade: last index: %w", err)
	}
	if r.next > last {
		return rsm.LogEntry{}, false, nil
	}

	var log raft.Log
	if err := r.logs.GetLog(r.next, &log); err != nil {
		if err == raft.ErrLogNotFound {
			return rsm.LogEntry{}, false, nil
		}
		return rsm.LogEntry{}, false, fmt.Errorf("logfacade: get log %d: %w", r.next, err)
	}

	entry, err := DecodeEntry(&log)
	if err != nil {
		return rsm.LogEntry{}, false, err
	}
	r.next++
	return entry, true, nil
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func decodeUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
