package rsm

import "github.com/google/uuid"

// Kind identifies the variant of a LogEntry. A single enum plus one struct
// with kind-specific fields replaces what would otherwise be a class per
// entry type; dispatch is a single switch in ServiceManager.applyOnStateContext.
type Kind int

const (
	KindCommand Kind = iota
	KindQuery
	KindOpenSession
	KindKeepAlive
	KindCloseSession
	KindMetadata
	KindInitialize
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindQuery:
		return "query"
	case KindOpenSession:
		return "open_session"
	case KindKeepAlive:
		return "keep_alive"
	case KindCloseSession:
		return "close_session"
	case KindMetadata:
		return "metadata"
	case KindInitialize:
		return "initialize"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// LogEntry is the tagged-variant record the ServiceManager consumes. Index is
// authoritative: it is set by the log, never derived from any other field.
// Only the fields relevant to Kind are populated; the core never reads a
// field outside the kind's own contract.
type LogEntry struct {
	Index     uint64
	Timestamp int64 // wall-clock milliseconds at the leader when appended
	Kind      Kind

	// OpenSession
	ServiceName string
	ServiceType string
	Timeout     int64 // milliseconds
	MemberID    uuid.UUID

	// Command / Query / CloseSession
	SessionID uint64
	Sequence  uint64
	Operation []byte

	// CloseSession
	Deleted bool

	// KeepAlive: parallel vectors, one element per session acknowledged.
	KeepAliveSessionIDs []uint64
	KeepAliveCommandSeq []uint64
	KeepAliveEventIdx   []uint64

	// Metadata: optional session id to scope the result to one service's
	// sessions; zero means "all sessions".
	MetadataSessionID uint64
}
