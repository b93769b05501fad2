package rsm

import "sync"

// ServiceRegistry indexes live ServiceContexts by name and by id. A name
// maps to at most one live service; re-creating a previously-deleted name
// assigns a new ServiceId and purges the old one's sessions (handled by the
// caller via SessionRegistry.RemoveByService before Register is called
// again).
type ServiceRegistry struct {
	mu       sync.RWMutex
	byName   map[string]*ServiceContext
	byID     map[uint64]*ServiceContext
	nextID   uint64
	registrationOrder []uint64
}

// NewServiceRegistry constructs an empty ServiceRegistry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		byName: make(map[string]*ServiceContext),
		byID:   make(map[uint64]*ServiceContext),
	}
}

// Lookup returns the live ServiceContext for name, if any.
func (r *ServiceRegistry) Lookup(name string) (*ServiceContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.byName[name]
	return sc, ok
}

// Get returns the live ServiceContext for a service id.
func (r *ServiceRegistry) Get(id uint64) (*ServiceContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.byID[id]
	return sc, ok
}

// Register assigns a new ServiceId and registers sc under name, replacing
// any prior live entry for that name. Returns the assigned id.
func (r *ServiceRegistry) Register(name string, sc *ServiceContext) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	sc.ServiceID = id
	sc.ServiceName = name
	r.byName[name] = sc
	r.byID[id] = sc
	r.registrationOrder = append(r.registrationOrder, id)
	return id
}

// RegisterWithID restores sc under a previously-assigned id, used when
// installing a snapshot whose records carry their own ServiceId. It advances
// nextID past id so a later fresh Register never collides with it.
func (r *ServiceRegistry) RegisterWithID(name string, sc *ServiceContext, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc.ServiceID = id
	sc.ServiceName = name
	r.byName[name] = sc
	r.byID[id] = sc
	r.registrationOrder = append(r.registrationOrder, id)
	if id > r.nextID {
		r.nextID = id
	}
}

// Unregister removes a service by id. It does not touch sessions; callers
// use SessionRegistry.RemoveByService for that.
func (r *ServiceRegistry) Unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	if r.byName[sc.ServiceName] == sc {
		delete(r.byName, sc.ServiceName)
	}
	for i, rid := range r.registrationOrder {
		if rid == id {
			r.registrationOrder = append(r.registrationOrder[:i], r.registrationOrder[i+1:]...)
			break
		}
	}
}

// Ordered returns every live ServiceContext in registration order, the
// deterministic order snapshots are written in.
func (r *ServiceRegistry) Ordered() []*ServiceContext {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ServiceContext, 0, len(r.registrationOrder))
	for _, id := range r.registrationOrder {
		if sc, ok := r.byID[id]; ok {
			out = append(out, sc)
		}
	}
	return out
}

// Count returns the number of live services.
func (r *ServiceRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
