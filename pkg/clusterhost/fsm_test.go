package clusterhost

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/cuemby/rsmgr/pkg/logfacade"
	"github.com/cuemby/rsmgr/pkg/rsm"
	"github.com/cuemby/rsmgr/pkg/service/kv"
	"github.com/cuemby/rsmgr/pkg/snapshotstore"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFSM wires a real ServiceManager (kv-backed) over a temp-dir
// logfacade/snapshotstore pair, the same collaborators serve.go builds in
// production, so fsmAdapter is exercised against the genuine LogFacade
// read path rather than a stub.
func newTestFSM(t *testing.T) (*fsmAdapter, *raftboltdb.BoltStore) {
	t.Helper()
	facade, store, err := logfacade.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = facade.Close() })

	snapStore, err := snapshotstore.Open(t.TempDir(), 2, zerolog.Nop())
	require.NoError(t, err)

	manager, err := rsm.NewManager(rsm.DefaultConfig(), facade, snapStore, kv.Factory, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(manager.Close)

	return newFSMAdapter(manager, zerolog.Nop()), store
}

func appendLog(t *testing.T, store interface {
	StoreLog(*raft.Log) error
}, index uint64, typ raft.LogType, data []byte) *raft.Log {
	t.Helper()
	log := &raft.Log{Index: index, Term: 1, Type: typ, Data: data}
	require.NoError(t, store.StoreLog(log))
	return log
}

func TestFSMApplyDispatchesOpenSessionAndCommand(t *testing.T) {
	fsm, store := newTestFSM(t)

	openData, err := logfacade.EncodeEntry(rsm.LogEntry{
		Kind: rsm.KindOpenSession, ServiceName: "kv-a", ServiceType: "kv", Timeout: 60_000,
	})
	require.NoError(t, err)
	openLog := appendLog(t, store, 1, raft.LogCommand, openData)

	result := fsm.Apply(openLog)
	opResult, ok := result.(rsm.OperationResult)
	require.True(t, ok)
	sessionID := binary.BigEndian.Uint64(opResult.Value)
	assert.Equal(t, uint64(1), sessionID)

	putCmd, err := kv.EncodeCommand(kv.Command{Op: kv.OpPut, Key: "k", Value: []byte("v")})
	require.NoError(t, err)
	cmdData, err := logfacade.EncodeEntry(rsm.LogEntry{
		Kind: rsm.KindCommand, SessionID: sessionID, Sequence: 1, Operation: putCmd,
	})
	require.NoError(t, err)
	cmdLog := appendLog(t, store, 2, raft.LogCommand, cmdData)

	result = fsm.Apply(cmdLog)
	_, ok = result.(rsm.OperationResult)
	assert.True(t, ok)

	getQuery, err := kv.EncodeQuery(kv.Query{Op: kv.OpGet, Key: "k"})
	require.NoError(t, err)
	queryData, err := logfacade.EncodeEntry(rsm.LogEntry{
		Kind: rsm.KindQuery, SessionID: sessionID, Sequence: 2, Operation: getQuery,
	})
	require.NoError(t, err)
	queryLog := appendLog(t, store, 3, raft.LogCommand, queryData)

	result = fsm.Apply(queryLog)
	opResult, ok = result.(rsm.OperationResult)
	require.True(t, ok)
	assert.Equal(t, "v", string(opResult.Value))
}

func TestFSMApplyNonCommandLogDoesNotBlock(t *testing.T) {
	fsm, _ := newTestFSM(t)
	result := fsm.Apply(&raft.Log{Index: 1, Type: raft.LogNoop})
	assert.Nil(t, result)
}

func TestFSMSnapshotThenRestoreRoundTrips(t *testing.T) {
	fsm, store := newTestFSM(t)

	openData, err := logfacade.EncodeEntry(rsm.LogEntry{
		Kind: rsm.KindOpenSession, ServiceName: "kv-a", ServiceType: "kv", Timeout: 60_000,
	})
	require.NoError(t, err)
	fsm.Apply(appendLog(t, store, 1, raft.LogCommand, openData))

	putCmd, err := kv.EncodeCommand(kv.Command{Op: kv.OpPut, Key: "k", Value: []byte("v")})
	require.NoError(t, err)
	cmdData, err := logfacade.EncodeEntry(rsm.LogEntry{
		Kind: rsm.KindCommand, SessionID: 1, Sequence: 1, Operation: putCmd,
	})
	require.NoError(t, err)
	fsm.Apply(appendLog(t, store, 2, raft.LogCommand, cmdData))

	snap, err := fsm.Snapshot()
	require.NoError(t, err)

	var buf bytes.Buffer
	sink := &fakeSnapshotSink{buf: &buf}
	require.NoError(t, snap.Persist(sink))
	require.True(t, sink.closed)

	freshFSM, freshStore := newTestFSM(t)
	require.NoError(t, freshFSM.Restore(&fakeReadCloser{Reader: bytes.NewReader(buf.Bytes())}))
	assert.Equal(t, uint64(2), freshFSM.manager.LastApplied())
	assert.Equal(t, 1, freshFSM.manager.ServiceCount())
	// Sessions are not part of the snapshot stream (only service state is —
	// a client whose session predates the snapshot must reopen one), so a
	// restored manager starts with zero live sessions.
	assert.Equal(t, 0, freshFSM.manager.SessionCount())

	reopenData, err := logfacade.EncodeEntry(rsm.LogEntry{
		Kind: rsm.KindOpenSession, ServiceName: "kv-a", ServiceType: "kv", Timeout: 60_000,
	})
	require.NoError(t, err)
	result := freshFSM.Apply(appendLog(t, freshStore, 3, raft.LogCommand, reopenData))
	opResult, ok := result.(rsm.OperationResult)
	require.True(t, ok)
	newSessionID := binary.BigEndian.Uint64(opResult.Value)

	getQuery, err := kv.EncodeQuery(kv.Query{Op: kv.OpGet, Key: "k"})
	require.NoError(t, err)
	queryData, err := logfacade.EncodeEntry(rsm.LogEntry{
		Kind: rsm.KindQuery, SessionID: newSessionID, Sequence: 1, Operation: getQuery,
	})
	require.NoError(t, err)
	result = freshFSM.Apply(appendLog(t, freshStore, 4, raft.LogCommand, queryData))
	opResult, ok = result.(rsm.OperationResult)
	require.True(t, ok)
	assert.Equal(t, "v", string(opResult.Value))
}

type fakeSnapshotSink struct {
	buf    *bytes.Buffer
	closed bool
}

func (s *fakeSnapshotSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *fakeSnapshotSink) Close() error                { s.closed = true; return nil }
func (s *fakeSnapshotSink) Cancel() error                { return nil }
func (s *fakeSnapshotSink) ID() string                   { return "test-snapshot" }

type fakeReadCloser struct {
	*bytes.Reader
}

func (f *fakeReadCloser) Close() error { return nil }
