package rsm

// OperationResult is the opaque outcome of a Command or Query, returned to
// the caller via the ServiceManager's per-index future.
type OperationResult struct {
	Value []byte
	Err   error
}

// Service is the outbound interface the core drives per §6. The core never
// interprets Operation/Value/snapshot bytes beyond passing them through;
// every Service implementation (e.g. pkg/service/kv) owns its own wire
// format for those.
type Service interface {
	// ServiceType identifies the kind of state machine this instance is,
	// recorded in the snapshot stream's per-record header.
	ServiceType() string

	// OpenSession is invoked once when a session against this service is
	// first created.
	OpenSession(index uint64, timestamp int64, session *Session) error

	// ExecuteCommand applies a mutating operation. index/sequence/timestamp
	// identify the entry; duplicate suppression (sequence <= session's
	// already-applied sequence) is handled by ServiceContext before this is
	// called.
	ExecuteCommand(index uint64, sequence uint64, timestamp int64, session *Session, operation []byte) (OperationResult, error)

	// ExecuteQuery applies a read-only operation. Never mutates state and
	// never publishes events.
	ExecuteQuery(index uint64, sequence uint64, timestamp int64, session *Session, operation []byte) (OperationResult, error)

	// KeepAlive marks session as trusted and garbage-collects any cached
	// command output / event state up to cmdSeq / eventIdx.
	KeepAlive(index uint64, timestamp int64, session *Session, cmdSeq uint64, eventIdx uint64) error

	// CompleteKeepAlive is invoked once per batch, after every KeepAlive
	// call in a KeepAlive entry has been applied to this service's sessions.
	CompleteKeepAlive(index uint64, timestamp int64) error

	// CloseSession is invoked when a session against this service is closed,
	// either explicitly or by expiration (expired=true).
	CloseSession(index uint64, timestamp int64, session *Session, expired bool) error

	// KeepAliveSessions is the Initialize/Configuration heartbeat: observe
	// time passing without any session-specific side effect.
	KeepAliveSessions(index uint64, timestamp int64) error

	// TakeSnapshot serializes the service's entire state.
	TakeSnapshot() ([]byte, error)

	// InstallSnapshot replaces the service's entire state from a
	// previously-produced TakeSnapshot image.
	InstallSnapshot(body []byte) error
}

// ServiceFactory materializes a new Service instance for a given service
// type name, used both for OpenSession against an unseen service name and
// for snapshot install.
type ServiceFactory func(serviceType string) (Service, error)
