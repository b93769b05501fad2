package logfacade

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/rsmgr/pkg/rsm"
	"github.com/hashicorp/raft"
)

// EncodeEntry serializes a LogEntry as the payload clusterhost passes to
// raft.Raft.Apply. The entry's Index field is marshaled as-is but carries no
// weight: raft assigns the index itself and DecodeEntry overwrites Index with
// raft.Log.Index.
func EncodeEntry(entry rsm.LogEntry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("logfacade: encode entry: %w", err)
	}
	return data, nil
}

// DecodeEntry turns a raft.Log back into a rsm.LogEntry. raft's own
// housekeeping log types (no-op leader-election barriers, configuration
// changes) are mapped onto the core's Initialize/Configuration heartbeat
// kinds rather than rejected, since the core must still observe them to
// advance time for KeepAliveSessions.
func DecodeEntry(log *raft.Log) (rsm.LogEntry, error) {
	switch log.Type {
	case raft.LogConfiguration:
		return rsm.LogEntry{Index: log.Index, Kind: rsm.KindConfiguration}, nil
	case raft.LogNoop, raft.LogBarrier:
		return rsm.LogEntry{Index: log.Index, Kind: rsm.KindInitialize}, nil
	case raft.LogCommand:
		var entry rsm.LogEntry
		if err := json.Unmarshal(log.Data, &entry); err != nil {
			return rsm.LogEntry{}, fmt.Errorf("logfacade: decode entry at index %d: %w", log.Index, err)
		}
		entry.Index = log.Index
		return entry, nil
	default:
		return rsm.LogEntry{Index: log.Index, Kind: rsm.KindInitialize}, nil
	}
}
