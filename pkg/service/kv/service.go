package kv

import (
	"fmt"
	"sync"

	"github.com/cuemby/rsmgr/pkg/rsm"
)

// Service is a replicated key/value store. It keeps no session-scoped state
// of its own: command de-duplication, sequencing, and keep-alive bookkeeping
// are all the core's concern (rsm.ServiceContext); this just applies
// already-deduplicated mutations to a map.
type Service struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New constructs an empty kv Service. Factory adapts it to the
// rsm.ServiceFactory shape for registration against a ServiceManager.
func New() *Service {
	return &Service{data: make(map[string][]byte)}
}

// Factory adapts New to rsm.ServiceFactory, ignoring serviceType (this
// package only ever produces one kind of service).
func Factory(serviceType string) (rsm.Service, error) {
	return New(), nil
}

func (s *Service) ServiceType() string { return "kv" }

func (s *Service) OpenSession(index uint64, timestamp int64, session *rsm.Session) error {
	return nil
}

func (s *Service) ExecuteCommand(index, sequence uint64, timestamp int64, session *rsm.Session, operation []byte) (rsm.OperationResult, error) {
	var cmd Command
	if err := decode(operation, &cmd); err != nil {
		return rsm.OperationResult{}, fmt.Errorf("kv: decode command: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Op {
	case OpPut:
		s.data[cmd.Key] = cmd.Value
		return rsm.OperationResult{}, nil
	case OpDelete:
		delete(s.data, cmd.Key)
		return rsm.OperationResult{}, nil
	default:
		return rsm.OperationResult{}, fmt.Errorf("kv: unknown command op %q", cmd.Op)
	}
}

func (s *Service) ExecuteQuery(index, sequence uint64, timestamp int64, session *rsm.Session, operation []byte) (rsm.OperationResult, error) {
	var q Query
	if err := decode(operation, &q); err != nil {
		return rsm.OperationResult{}, fmt.Errorf("kv: decode query: %w", err)
	}
	if q.Op != OpGet {
		return rsm.OperationResult{}, fmt.Errorf("kv: unknown query op %q", q.Op)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return rsm.OperationResult{Value: s.data[q.Key]}, nil
}

func (s *Service) KeepAlive(index uint64, timestamp int64, session *rsm.Session, cmdSeq, eventIdx uint64) error {
	return nil
}

func (s *Service) CompleteKeepAlive(index uint64, timestamp int64) error { return nil }

func (s *Service) CloseSession(index uint64, timestamp int64, session *rsm.Session, expired bool) error {
	return nil
}

func (s *Service) KeepAliveSessions(index uint64, timestamp int64) error { return nil }

func (s *Service) TakeSnapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		snapshot[k] = v
	}
	return encode(snapshot)
}

func (s *Service) InstallSnapshot(body []byte) error {
	var snapshot map[string][]byte
	if err := decode(body, &snapshot); err != nil {
		return fmt.Errorf("kv: decode snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snapshot
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	return nil
}
