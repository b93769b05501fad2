package rsm

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// kvTestService is a minimal Service used across this package's tests: a
// sorted-map key/value store whose wire formats (operation and snapshot) are
// deliberately simple ad-hoc encodings rather than any production codec.
type kvTestService struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *kvTestService) ServiceType() string { return "kv-test" }

func (s *kvTestService) OpenSession(index uint64, timestamp int64, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]string)
	}
	return nil
}

func (s *kvTestService) ExecuteCommand(index, sequence uint64, timestamp int64, session *Session, operation []byte) (OperationResult, error) {
	parts := strings.SplitN(string(operation), "|", 3)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]string)
	}
	switch parts[0] {
	case "PUT":
		s.data[parts[1]] = parts[2]
		return OperationResult{Value: []byte("ok")}, nil
	case "DEL":
		delete(s.data, parts[1])
		return OperationResult{Value: []byte("ok")}, nil
	default:
		return OperationResult{}, fmt.Errorf("kv-test: unknown command %q", parts[0])
	}
}

func (s *kvTestService) ExecuteQuery(index, sequence uint64, timestamp int64, session *Session, operation []byte) (OperationResult, error) {
	parts := strings.SplitN(string(operation), "|", 2)
	s.mu.Lock()
	defer s.mu.Unlock()
	if parts[0] != "GET" {
		return OperationResult{}, fmt.Errorf("kv-test: unknown query %q", parts[0])
	}
	return OperationResult{Value: []byte(s.data[parts[1]])}, nil
}

func (s *kvTestService) KeepAlive(index uint64, timestamp int64, session *Session, cmdSeq, eventIdx uint64) error {
	return nil
}

func (s *kvTestService) CompleteKeepAlive(index uint64, timestamp int64) error { return nil }

func (s *kvTestService) CloseSession(index uint64, timestamp int64, session *Session, expired bool) error {
	return nil
}

func (s *kvTestService) KeepAliveSessions(index uint64, timestamp int64) error { return nil }

func (s *kvTestService) TakeSnapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte(0)
		buf.WriteString(s.data[k])
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

func (s *kvTestService) InstallSnapshot(body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]string)
	parts := strings.Split(string(body), "\x00")
	for i := 0; i+1 < len(parts); i += 2 {
		if parts[i] == "" && parts[i+1] == "" {
			continue
		}
		s.data[parts[i]] = parts[i+1]
	}
	return nil
}

func kvPut(key, value string) []byte { return []byte("PUT|" + key + "|" + value) }
func kvGet(key string) []byte        { return []byte("GET|" + key) }

// fakeLogReader sequentially serves a fixed slice of entries starting at
// some base index, never reaching past what has been "appended" so far.
// failAt, if non-zero, is the 1-based log index at which Next returns an
// error instead of an entry; the cursor does not advance on that call, so
// a retry from the same position serves the same index again.
type fakeLogReader struct {
	entries []LogEntry
	pos     int
	failAt  uint64
}

func (r *fakeLogReader) Next() (LogEntry, bool, error) {
	if r.pos >= len(r.entries) {
		return LogEntry{}, false, nil
	}
	e := r.entries[r.pos]
	if r.failAt != 0 && e.Index == r.failAt {
		return LogEntry{}, false, fmt.Errorf("simulated read failure at index %d", e.Index)
	}
	r.pos++
	return e, true, nil
}

// fakeLogFacade is an in-memory LogFacade: compaction just records the
// highest index passed to Compact, disk/memory figures are fixed knobs.
type fakeLogFacade struct {
	mu          sync.Mutex
	entries     []LogEntry
	compactable bool
	compactedAt uint64
	compactions int
	usable      int64
	total       int64
	failAt      uint64
}

func (f *fakeLogFacade) FirstIndex() (uint64, error) { return 1, nil }

func (f *fakeLogFacade) IsCompactable(appliedIndex uint64) bool { return f.compactable }

func (f *fakeLogFacade) CompactableIndex(appliedIndex uint64) uint64 { return appliedIndex }

func (f *fakeLogFacade) Compact(index uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compactedAt = index
	f.compactions++
	return nil
}

func (f *fakeLogFacade) Reader(index uint64) (LogReader, error) {
	if index == 0 {
		index = 1
	}
	return &fakeLogReader{entries: f.entries, pos: int(index - 1), failAt: f.failAt}, nil
}

func (f *fakeLogFacade) UsableDiskBytes() (int64, error) {
	if f.total == 0 {
		return 1 << 30, nil
	}
	return f.usable, nil
}

func (f *fakeLogFacade) TotalDiskBytes() (int64, error) {
	if f.total == 0 {
		return 1 << 30, nil
	}
	return f.total, nil
}

// fakeSnapshotStore / fakeSnapshotSink / fakeSnapshotHandle are an in-memory
// SnapshotStore: Create buffers into memory, Close publishes it as Current.
type fakeSnapshotStore struct {
	mu      sync.Mutex
	current *fakeSnapshotHandle
}

func (s *fakeSnapshotStore) Create(index uint64, timestamp int64) (SnapshotSink, error) {
	return &fakeSnapshotSink{store: s, index: index, timestamp: timestamp}, nil
}

func (s *fakeSnapshotStore) Current() (SnapshotHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	return &fakeSnapshotHandle{data: s.current.data, index: s.current.index, timestamp: s.current.timestamp}, true
}

type fakeSnapshotSink struct {
	store     *fakeSnapshotStore
	buf       bytes.Buffer
	index     uint64
	timestamp int64
}

func (s *fakeSnapshotSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *fakeSnapshotSink) Index() uint64               { return s.index }

func (s *fakeSnapshotSink) Close() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	data := make([]byte, s.buf.Len())
	copy(data, s.buf.Bytes())
	s.store.current = &fakeSnapshotHandle{data: data, index: s.index, timestamp: s.timestamp}
	return nil
}

func (s *fakeSnapshotSink) Cancel() error { return nil }

type fakeSnapshotHandle struct {
	data      []byte
	index     uint64
	timestamp int64
	pos       int
}

func (h *fakeSnapshotHandle) Read(p []byte) (int, error) {
	if h.pos >= len(h.data) {
		return 0, io.EOF
	}
	n := copy(p, h.data[h.pos:])
	h.pos += n
	return n, nil
}

func (h *fakeSnapshotHandle) Index() uint64    { return h.index }
func (h *fakeSnapshotHandle) Timestamp() int64 { return h.timestamp }
