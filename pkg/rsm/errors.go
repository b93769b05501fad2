package rsm

import "errors"

// Sentinel error kinds per the core's error handling design. Call sites wrap
// these with fmt.Errorf("...: %w", ErrX) so errors.Is keeps working across
// the boundary back to the consensus layer.
var (
	// ErrUnknownSession is returned when an entry references a session id
	// the SessionRegistry does not hold. The entry is still consumed.
	ErrUnknownSession = errors.New("rsm: unknown session")

	// ErrUnknownService is returned when OpenSession names a service type
	// the registry cannot materialize.
	ErrUnknownService = errors.New("rsm: unknown service type")

	// ErrProtocol is returned when a LogEntry carries a Kind the dispatcher
	// does not recognize.
	ErrProtocol = errors.New("rsm: protocol error")

	// ErrIndexOutOfBounds is returned when apply(i) is requested for an
	// index the log reader cannot reach.
	ErrIndexOutOfBounds = errors.New("rsm: index out of bounds")

	// ErrSnapshotIO is returned when snapshot creation or installation fails
	// at the I/O layer. The snapshot cycle logs it and completes the
	// compaction future with it; an install that fails while an entry is
	// being applied fails that entry's future with it.
	ErrSnapshotIO = errors.New("rsm: snapshot I/O error")

	// ErrCompaction is returned (and logged; the compaction future still
	// completes successfully) when log.compact fails.
	ErrCompaction = errors.New("rsm: compaction error")

	// ErrManagerClosed is returned by apply/applyAll/compact once the
	// manager has been shut down.
	ErrManagerClosed = errors.New("rsm: manager closed")

	// ErrSnapshotTimeout marks an abandoned completion-wait (SPEC_FULL §9
	// open question resolution): logged, not surfaced to a caller future.
	ErrSnapshotTimeout = errors.New("rsm: snapshot completion timed out")
)
