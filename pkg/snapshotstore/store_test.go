package snapshotstore

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSnapshot(t *testing.T, s *Store, index uint64, timestamp int64, body string) {
	t.Helper()
	sink, err := s.Create(index, timestamp)
	require.NoError(t, err)
	_, err = sink.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
}

func TestCreateThenCurrentRoundTrips(t *testing.T) {
	s, err := Open(t.TempDir(), 3, zerolog.Nop())
	require.NoError(t, err)

	writeSnapshot(t, s, 10, 1234, "hello")

	handle, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(10), handle.Index())
	data, err := io.ReadAll(handle)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestCurrentFalseWhenEmpty(t *testing.T) {
	s, err := Open(t.TempDir(), 3, zerolog.Nop())
	require.NoError(t, err)
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestCurrentReflectsMostRecentSnapshot(t *testing.T) {
	s, err := Open(t.TempDir(), 3, zerolog.Nop())
	require.NoError(t, err)

	writeSnapshot(t, s, 1, 100, "first")
	writeSnapshot(t, s, 2, 200, "second")

	handle, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(2), handle.Index())
	data, err := io.ReadAll(handle)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestCancelLeavesNoFinalizedSnapshot(t *testing.T) {
	s, err := Open(t.TempDir(), 3, zerolog.Nop())
	require.NoError(t, err)

	sink, err := s.Create(1, 100)
	require.NoError(t, err)
	_, err = sink.Write([]byte("abandoned"))
	require.NoError(t, err)
	require.NoError(t, sink.Cancel())

	_, ok := s.Current()
	assert.False(t, ok)
}

func TestPruneKeepsOnlyRetainedCount(t *testing.T) {
	s, err := Open(t.TempDir(), 2, zerolog.Nop())
	require.NoError(t, err)

	for i := uint64(1); i <= 5; i++ {
		writeSnapshot(t, s, i, int64(i)*100, "body")
	}

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	var snapFiles int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".snap") {
			snapFiles++
		}
	}
	assert.LessOrEqual(t, snapFiles, 2)
}
