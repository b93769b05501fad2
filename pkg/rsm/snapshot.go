package rsm

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SnapshotRecord is one service's sub-snapshot within the stream. Body is
// opaque to the core; only the service that produced it can interpret it.
type SnapshotRecord struct {
	ServiceID   uint64
	ServiceType string
	ServiceName string
	Body        []byte
}

// writeRecord writes one length-delimited record: a 4-byte big-endian total
// length prefix followed by {serviceId(8) | typeLen(2)+type | nameLen(2)+name
// | body}. Readers must tolerate trailing records they don't expect
// (forward compatibility), which is why the outer length prefix exists
// independent of the inner field lengths.
func writeRecord(w io.Writer, rec SnapshotRecord) error {
	if len(rec.ServiceType) > 0xFFFF || len(rec.ServiceName) > 0xFFFF {
		return fmt.Errorf("rsm: service type/name too long for snapshot record")
	}
	payloadLen := 8 + 2 + len(rec.ServiceType) + 2 + len(rec.ServiceName) + len(rec.Body)
	buf := make([]byte, 4+payloadLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(payloadLen))
	off := 4
	binary.BigEndian.PutUint64(buf[off:off+8], rec.ServiceID)
	off += 8
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(rec.ServiceType)))
	off += 2
	off += copy(buf[off:], rec.ServiceType)
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(rec.ServiceName)))
	off += 2
	off += copy(buf[off:], rec.ServiceName)
	copy(buf[off:], rec.Body)

	_, err := w.Write(buf)
	return err
}

// readRecord reads one length-delimited record. It returns io.EOF when the
// stream is exhausted cleanly between records.
func readRecord(r io.Reader) (SnapshotRecord, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return SnapshotRecord{}, err
	}
	payloadLen := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return SnapshotRecord{}, fmt.Errorf("rsm: truncated snapshot record: %w", err)
	}

	if len(payload) < 8+2 {
		return SnapshotRecord{}, fmt.Errorf("rsm: %w: snapshot record too short", ErrSnapshotIO)
	}
	off := 0
	serviceID := binary.BigEndian.Uint64(payload[off : off+8])
	off += 8
	typeLen := int(binary.BigEndian.Uint16(payload[off : off+2]))
	off += 2
	if off+typeLen+2 > len(payload) {
		return SnapshotRecord{}, fmt.Errorf("rsm: %w: snapshot record truncated (type)", ErrSnapshotIO)
	}
	serviceType := string(payload[off : off+typeLen])
	off += typeLen
	nameLen := int(binary.BigEndian.Uint16(payload[off : off+2]))
	off += 2
	if off+nameLen > len(payload) {
		return SnapshotRecord{}, fmt.Errorf("rsm: %w: snapshot record truncated (name)", ErrSnapshotIO)
	}
	serviceName := string(payload[off : off+nameLen])
	off += nameLen
	body := payload[off:]

	return SnapshotRecord{
		ServiceID:   serviceID,
		ServiceType: serviceType,
		ServiceName: serviceName,
		Body:        body,
	}, nil
}

// writeSnapshot iterates services in registration order and writes each
// one's sub-snapshot, delimited by length prefix, per §4.1/§6.
func writeSnapshot(w io.Writer, services *ServiceRegistry) error {
	for _, sc := range services.Ordered() {
		body, err := sc.takeSnapshot()
		if err != nil {
			return fmt.Errorf("snapshot service %s: %w", sc.ServiceName, err)
		}
		rec := SnapshotRecord{
			ServiceID:   sc.ServiceID,
			ServiceType: sc.svc.ServiceType(),
			ServiceName: sc.ServiceName,
			Body:        body,
		}
		if err := writeRecord(w, rec); err != nil {
			return fmt.Errorf("%w: %v", ErrSnapshotIO, err)
		}
	}
	return nil
}

// readAllRecords reads every record in the stream until a clean EOF,
// tolerating additional trailing records it doesn't otherwise interpret.
func readAllRecords(r io.Reader) ([]SnapshotRecord, error) {
	var recs []SnapshotRecord
	for {
		rec, err := readRecord(r)
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}

// SnapshotStore is the abstracted collaborator that owns snapshot
// persistence. The core only ever creates a new snapshot at an index (via a
// byte sink it writes the stream into) and asks for the current snapshot for
// install/skip decisions; the wire format of "current" is opaque beyond its
// Index.
type SnapshotStore interface {
	// Create returns a sink to write a new snapshot's stream into, at the
	// given applied index and timestamp. Close finalizes it; Cancel aborts.
	Create(index uint64, timestamp int64) (SnapshotSink, error)

	// Current returns the most recently finalized snapshot, or ok=false if
	// none exists yet.
	Current() (SnapshotHandle, bool)
}

// SnapshotSink is the write side of a snapshot in progress.
type SnapshotSink interface {
	io.Writer
	Index() uint64
	Close() error
	Cancel() error
}

// SnapshotHandle is the read side of a finalized snapshot.
type SnapshotHandle interface {
	io.Reader
	Index() uint64
	Timestamp() int64
}

// LogFacade is the abstracted collaborator over the committed log: the core
// only ever uses isCompactable/compactableIndex/compact and reader
// positioning, never append (replication is external).
type LogFacade interface {
	// FirstIndex is the lowest index the reader can currently reach.
	FirstIndex() (uint64, error)

	// IsCompactable reports whether the log can be compacted at all given
	// the current applied index.
	IsCompactable(appliedIndex uint64) bool

	// CompactableIndex returns the highest index that may safely be passed
	// to Compact given appliedIndex.
	CompactableIndex(appliedIndex uint64) uint64

	// Compact truncates the log prefix up to and including index.
	Compact(index uint64) error

	// Reader returns a positioned reader starting at index.
	Reader(index uint64) (LogReader, error)

	// UsableDiskBytes / TotalDiskBytes support the disk-pressure
	// calculation in §4.1 step 3.
	UsableDiskBytes() (int64, error)
	TotalDiskBytes() (int64, error)
}

// LogReader sequentially reads committed entries from a fixed starting
// index onward.
type LogReader interface {
	// Next returns the entry at the reader's current cursor and advances
	// it, or ok=false if the reader cannot yet reach that index.
	Next() (entry LogEntry, ok bool, err error)
}
