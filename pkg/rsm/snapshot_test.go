package rsm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	rec := SnapshotRecord{
		ServiceID:   7,
		ServiceType: "kv-test",
		ServiceName: "widgets",
		Body:        []byte("hello world"),
	}

	var buf bytes.Buffer
	require.NoError(t, writeRecord(&buf, rec))

	got, err := readRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestReadAllRecordsToleratesTrailingData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecord(&buf, SnapshotRecord{ServiceID: 1, ServiceType: "a", ServiceName: "one"}))
	require.NoError(t, writeRecord(&buf, SnapshotRecord{ServiceID: 2, ServiceType: "b", ServiceName: "two"}))

	recs, err := readAllRecords(&buf)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "one", recs[0].ServiceName)
	assert.Equal(t, "two", recs[1].ServiceName)
}

func TestWriteSnapshotIsOrderedByRegistration(t *testing.T) {
	services := NewServiceRegistry()
	a := newServiceContext(&kvTestService{data: map[string]string{"k": "v"}})
	services.Register("a", a)
	b := newServiceContext(&kvTestService{data: map[string]string{"x": "y"}})
	services.Register("b", b)

	var buf bytes.Buffer
	require.NoError(t, writeSnapshot(&buf, services))

	recs, err := readAllRecords(&buf)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ServiceName)
	assert.Equal(t, "b", recs[1].ServiceName)
}

func TestSnapshotRoundTripIsByteEqual(t *testing.T) {
	services := NewServiceRegistry()
	svc := &kvTestService{data: map[string]string{"k1": "v1", "k2": "v2"}}
	sc := newServiceContext(svc)
	services.Register("kv", sc)

	var first bytes.Buffer
	require.NoError(t, writeSnapshot(&first, services))

	// install into a fresh service of the same type and re-snapshot
	restored := &kvTestService{}
	restoredCtx := newServiceContext(restored)
	recs, err := readAllRecords(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)
	require.NoError(t, restoredCtx.installSnapshot(recs[0].Body))

	restoredBody, err := restoredCtx.takeSnapshot()
	require.NoError(t, err)
	assert.Equal(t, recs[0].Body, restoredBody)
}
