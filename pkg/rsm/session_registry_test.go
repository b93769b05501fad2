package rsm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTouchMonotonic(t *testing.T) {
	s := &Session{ID: 1, ServiceID: 1}
	s.touch(5, 1000, 3, 2)
	assert.Equal(t, uint64(3), s.CommandSequence)
	assert.Equal(t, uint64(2), s.EventIndex)
	assert.Equal(t, uint64(5), s.LastCompleted)

	// a lower watermark never regresses recorded state
	s.touch(4, 900, 1, 1)
	assert.Equal(t, uint64(3), s.CommandSequence)
	assert.Equal(t, uint64(2), s.EventIndex)
	assert.Equal(t, uint64(5), s.LastCompleted)
}

func TestSessionExpired(t *testing.T) {
	s := &Session{Timeout: time.Second, LastUpdated: 0}
	assert.False(t, s.expired(500))
	assert.True(t, s.expired(2000))
}

func TestSessionExpiredNeverWithZeroTimeout(t *testing.T) {
	s := &Session{Timeout: 0, LastUpdated: 0}
	assert.False(t, s.expired(1_000_000))
}

func TestSessionRegistryAddGetRemove(t *testing.T) {
	r := NewSessionRegistry()
	s := &Session{ID: 1, ServiceID: 10}
	r.Add(s)

	got, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, s, got)
	assert.Equal(t, 1, r.Count())

	r.Remove(1)
	_, ok = r.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestSessionRegistryRemoveByServiceIsExact(t *testing.T) {
	r := NewSessionRegistry()
	r.Add(&Session{ID: 1, ServiceID: 10})
	r.Add(&Session{ID: 2, ServiceID: 10})
	r.Add(&Session{ID: 3, ServiceID: 20})

	removed := r.RemoveByService(10)
	assert.ElementsMatch(t, []uint64{1, 2}, removed)

	_, ok := r.Get(3)
	assert.True(t, ok, "session belonging to a different service must survive")
	assert.Equal(t, 1, r.Count())
}

func TestSessionRegistryByService(t *testing.T) {
	r := NewSessionRegistry()
	r.Add(&Session{ID: 1, ServiceID: 10})
	r.Add(&Session{ID: 2, ServiceID: 10})

	ids := r.ByService(10)
	assert.ElementsMatch(t, []uint64{1, 2}, ids)
	assert.Empty(t, r.ByService(99))
}
