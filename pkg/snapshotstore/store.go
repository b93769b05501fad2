package snapshotstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cuemby/rsmgr/pkg/rsm"
	"github.com/rs/zerolog"
)

const currentPointerFile = "CURRENT"

// Store implements rsm.SnapshotStore by writing each snapshot to its own
// file under dir, named "<index>-<timestamp>.snap", and recording the
// latest one's filename in a CURRENT pointer file. Retain bounds how many
// finalized snapshots are kept on disk; older ones are pruned after a
// successful Close.
type Store struct {
	mu      sync.Mutex
	dir     string
	retain  int
	logger  zerolog.Logger
}

// Open ensures dir exists and returns a Store retaining the most recent
// `retain` snapshots (retain < 1 is treated as 1).
func Open(dir string, retain int, logger zerolog.Logger) (*Store, error) {
	if retain < 1 {
		retain = 1
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("snapshotstore: create dir: %w", err)
	}
	return &Store{dir: dir, retain: retain, logger: logger}, nil
}

func (s *Store) fileName(index uint64, timestamp int64) string {
	return fmt.Sprintf("%020d-%d.snap", index, timestamp)
}

// Create opens a temp file for a new snapshot stream.
func (s *Store) Create(index uint64, timestamp int64) (rsm.SnapshotSink, error) {
	name := s.fileName(index, timestamp)
	tmpPath := filepath.Join(s.dir, name+".tmp")
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: create temp file: %w", err)
	}
	return &sink{
		store:     s,
		file:      f,
		index:     index,
		timestamp: timestamp,
		tmpPath:   tmpPath,
		finalPath: filepath.Join(s.dir, name),
	}, nil
}

// Current returns the snapshot named by the CURRENT pointer file, if any.
func (s *Store) Current() (rsm.SnapshotHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.readPointer()
	if err != nil || name == "" {
		return nil, false
	}

	index, timestamp, err := parseFileName(name)
	if err != nil {
		return nil, false
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, false
	}
	return &handle{file: f, index: index, timestamp: timestamp}, true
}

func (s *Store) readPointer() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentPointerFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// publish finalizes a sink's temp file as the new CURRENT snapshot and
// prunes anything beyond retain. Caller must hold s.mu.
func (s *Store) publish(finalPath, tmpPath, name string) error {
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("snapshotstore: finalize: %w", err)
	}
	pointerTmp := filepath.Join(s.dir, currentPointerFile+".tmp")
	if err := os.WriteFile(pointerTmp, []byte(name), 0o600); err != nil {
		return fmt.Errorf("snapshotstore: write pointer: %w", err)
	}
	if err := os.Rename(pointerTmp, filepath.Join(s.dir, currentPointerFile)); err != nil {
		return fmt.Errorf("snapshotstore: publish pointer: %w", err)
	}
	s.prune(name)
	return nil
}

// prune removes finalized snapshot files beyond the most recent `retain`,
// always keeping the one just published. Best-effort: a failed removal is
// logged, not propagated, since the snapshot itself already succeeded.
func (s *Store) prune(keepNewest string) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".snap") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // zero-padded index prefix sorts chronologically
	if len(names) <= s.retain {
		return
	}
	for _, name := range names[:len(names)-s.retain] {
		if name == keepNewest {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("failed to prune old snapshot")
		}
	}
}

func parseFileName(name string) (index uint64, timestamp int64, err error) {
	base := strings.TrimSuffix(name, ".snap")
	parts := strings.SplitN(base, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("snapshotstore: malformed snapshot filename %q", name)
	}
	idx, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return idx, ts, nil
}

type sink struct {
	store     *Store
	file      *os.File
	index     uint64
	timestamp int64
	tmpPath   string
	finalPath string
}

func (s *sink) Write(p []byte) (int, error) { return s.file.Write(p) }
func (s *sink) Index() uint64               { return s.index }

func (s *sink) Close() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("snapshotstore: close temp file: %w", err)
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.store.publish(s.finalPath, s.tmpPath, filepath.Base(s.finalPath))
}

func (s *sink) Cancel() error {
	_ = s.file.Close()
	return os.Remove(s.tmpPath)
}

type handle struct {
	file      *os.File
	index     uint64
	timestamp int64
}

func (h *handle) Read(p []byte) (int, error) { return h.file.Read(p) }
func (h *handle) Index() uint64              { return h.index }
func (h *handle) Timestamp() int64           { return h.timestamp }
