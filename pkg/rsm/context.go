package rsm

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/rsmgr/pkg/metrics"
	"github.com/google/uuid"
)

// cachedResponse is the duplicate-command cache entry for one session
// against one service: the last sequence number applied and the result it
// produced, so a retransmitted command returns the same result without a
// second side effect. Grounded on dragonboat's UpdateRequired/AddResponse
// pattern.
type cachedResponse struct {
	sequence uint64
	result   OperationResult
}

// ServiceContext is the per-service execution envelope: it owns the user
// Service instance and the session-local duplicate-detection cache. All of
// its methods are invoked exclusively from the state context's single
// executor (see Scheduler), which is what makes "dedicated executor" true
// without requiring a goroutine per service.
type ServiceContext struct {
	ServiceID   uint64
	ServiceName string

	svc     Service
	deleted bool

	mu     sync.Mutex
	cached map[uint64]cachedResponse // sessionID -> last command response
}

// newServiceContext wraps a freshly-materialized Service instance.
func newServiceContext(svc Service) *ServiceContext {
	return &ServiceContext{
		svc:    svc,
		cached: make(map[uint64]cachedResponse),
	}
}

// OpenSession assigns SessionId = entry.index, creates the session, and
// invokes the service's open-session hook.
func (sc *ServiceContext) openSession(sessions *SessionRegistry, index uint64, timestamp int64, timeoutMillis int64, memberID uuid.UUID) (*Session, error) {
	s := &Session{
		ID:          index,
		ServiceID:   sc.ServiceID,
		Timeout:     time.Duration(timeoutMillis) * time.Millisecond,
		LastUpdated: timestamp,
		MemberID:    memberID,
	}
	sessions.Add(s)
	if err := sc.svc.OpenSession(index, timestamp, s); err != nil {
		return nil, fmt.Errorf("service %s open session: %w", sc.ServiceName, err)
	}
	return s, nil
}

// executeCommand looks up the session, applies duplicate detection, and
// delegates to the service. A sequence <= the cached sequence returns the
// cached result without invoking the service again.
func (sc *ServiceContext) executeCommand(sessions *SessionRegistry, loadMonitor *LoadMonitor, index uint64, sessionID uint64, sequence uint64, timestamp int64, operation []byte) (OperationResult, error) {
	session, ok := sessions.Get(sessionID)
	if !ok {
		return OperationResult{}, fmt.Errorf("command entry %d: %w", index, ErrUnknownSession)
	}

	sc.mu.Lock()
	if cached, ok := sc.cached[sessionID]; ok && sequence <= cached.sequence {
		sc.mu.Unlock()
		metrics.DuplicateCommandsTotal.Inc()
		return cached.result, nil
	}
	sc.mu.Unlock()

	loadMonitor.RecordEvent()
	metrics.CommandsTotal.Inc()

	result, err := sc.svc.ExecuteCommand(index, sequence, timestamp, session, operation)
	if err != nil {
		result = OperationResult{Err: err}
	}

	sc.mu.Lock()
	sc.cached[sessionID] = cachedResponse{sequence: sequence, result: result}
	sc.mu.Unlock()

	return result, err
}

// executeQuery looks up the session and delegates; queries are never cached
// and never publish events.
func (sc *ServiceContext) executeQuery(sessions *SessionRegistry, index uint64, sessionID uint64, sequence uint64, timestamp int64, operation []byte) (OperationResult, error) {
	session, ok := sessions.Get(sessionID)
	if !ok {
		return OperationResult{}, fmt.Errorf("query entry %d: %w", index, ErrUnknownSession)
	}
	metrics.QueriesTotal.Inc()
	return sc.svc.ExecuteQuery(index, sequence, timestamp, session, operation)
}

// keepAlive refreshes one session's liveness and purges cached state the
// client has acknowledged up through cmdSeq/eventIdx.
func (sc *ServiceContext) keepAlive(session *Session, index uint64, timestamp int64, cmdSeq, eventIdx uint64) error {
	session.touch(index, timestamp, cmdSeq, eventIdx)
	if err := sc.svc.KeepAlive(index, timestamp, session, cmdSeq, eventIdx); err != nil {
		return fmt.Errorf("service %s keep alive: %w", sc.ServiceName, err)
	}
	sc.mu.Lock()
	if cached, ok := sc.cached[session.ID]; ok && cached.sequence <= cmdSeq {
		delete(sc.cached, session.ID)
	}
	sc.mu.Unlock()
	return nil
}

// completeKeepAlive is invoked once per service touched by a KeepAlive
// entry, after every individual keepAlive call in the batch has run.
func (sc *ServiceContext) completeKeepAlive(index uint64, timestamp int64) error {
	return sc.svc.CompleteKeepAlive(index, timestamp)
}

// closeSession invokes the service's close hook; the caller unregisters the
// service afterward if deleted is true.
func (sc *ServiceContext) closeSession(index uint64, timestamp int64, session *Session, expired bool) error {
	if err := sc.svc.CloseSession(index, timestamp, session, expired); err != nil {
		return fmt.Errorf("service %s close session: %w", sc.ServiceName, err)
	}
	return nil
}

// heartbeat implements Initialize/Configuration: observe time passing
// without any session-specific side effect.
func (sc *ServiceContext) heartbeat(index uint64, timestamp int64) error {
	return sc.svc.KeepAliveSessions(index, timestamp)
}

// takeSnapshot serializes the service's current state.
func (sc *ServiceContext) takeSnapshot() ([]byte, error) {
	return sc.svc.TakeSnapshot()
}

// installSnapshot replaces the service's state from a snapshot record body.
func (sc *ServiceContext) installSnapshot(body []byte) error {
	return sc.svc.InstallSnapshot(body)
}
