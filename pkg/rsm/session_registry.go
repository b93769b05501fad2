package rsm

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is a client's authenticated handle against one service. It carries
// the sequence/version watermarks that give commands and events their
// ordering and deduplication guarantees.
type Session struct {
	ID              uint64
	ServiceID       uint64
	MemberID        uuid.UUID
	ReadConsistency string
	Timeout         time.Duration
	LastUpdated     int64 // ms, set from the entry timestamp that last touched it

	CommandSequence uint64 // highest client-acked command sequence
	EventIndex      uint64 // highest client-acked event index
	LastCompleted   uint64 // lowest index whose linearizable events are all acked

	trusted bool // set true by a successful keep-alive; consulted by the sweep
}

// touch refreshes LastUpdated/trusted and advances the monotonic watermarks.
// Watermarks never decrease, per the data model invariant. index is the
// keep-alive entry's own index, which becomes the session's new
// LastCompleted watermark once the keep-alive has run — the signal the
// snapshot completion check polls for.
func (s *Session) touch(index uint64, timestamp int64, cmdSeq, eventIdx uint64) {
	s.LastUpdated = timestamp
	s.trusted = true
	if cmdSeq > s.CommandSequence {
		s.CommandSequence = cmdSeq
	}
	if eventIdx > s.EventIndex {
		s.EventIndex = eventIdx
	}
	if index > s.LastCompleted {
		s.LastCompleted = index
	}
}

func (s *Session) expired(now int64) bool {
	if s.Timeout <= 0 {
		return false
	}
	return now-s.LastUpdated > s.Timeout.Milliseconds()
}

// SessionRegistry indexes live sessions by id and, secondarily, by the
// service that owns them. It is the exclusive owner of Session values: every
// other component holds a session id and resolves through Get, never an
// owning reference. Structurally grounded in the teacher's token manager
// (map + sync.RWMutex, add/validate/sweep/list).
type SessionRegistry struct {
	mu          sync.RWMutex
	sessions    map[uint64]*Session
	byService   map[uint64]map[uint64]struct{}
}

// NewSessionRegistry constructs an empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions:  make(map[uint64]*Session),
		byService: make(map[uint64]map[uint64]struct{}),
	}
}

// Add registers a new session. Caller is responsible for picking a unique id
// (the OpenSession entry's index, per the data model).
func (r *SessionRegistry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	set := r.byService[s.ServiceID]
	if set == nil {
		set = make(map[uint64]struct{})
		r.byService[s.ServiceID] = set
	}
	set[s.ID] = struct{}{}
}

// Get looks up a session by id.
func (r *SessionRegistry) Get(id uint64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops a single session.
func (r *SessionRegistry) Remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	if set := r.byService[s.ServiceID]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byService, s.ServiceID)
		}
	}
}

// RemoveByService drops every session owned by serviceID and returns their
// ids, satisfying "removing a service removes exactly its sessions".
func (r *SessionRegistry) RemoveByService(serviceID uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.byService[serviceID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
		delete(r.sessions, id)
	}
	delete(r.byService, serviceID)
	return ids
}

// ByService returns the ids of every session currently owned by serviceID.
func (r *SessionRegistry) ByService(serviceID uint64) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byService[serviceID]
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// All returns every live session. Used by the keep-alive sweep and by
// Metadata entries.
func (r *SessionRegistry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
