package rsm

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecContextCallBlocksUntilTaskRuns(t *testing.T) {
	c := newExecContext(4)
	defer c.Stop()

	var ran atomic.Bool
	c.Call(func() { ran.Store(true) })
	assert.True(t, ran.Load())
}

func TestExecContextSubmitOrdersTasks(t *testing.T) {
	c := newExecContext(8)
	defer c.Stop()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		c.Submit(func() { order = append(order, i) })
	}
	c.Call(func() { close(done) })
	<-done

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestExecContextStopDropsQueuedSubmits(t *testing.T) {
	c := newExecContext(1)
	c.Stop()

	var ran atomic.Bool
	c.Submit(func() { ran.Store(true) })
	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestSchedulerStopHaltsBothContexts(t *testing.T) {
	s := NewScheduler(DefaultConfig())
	s.Stop()

	var ran atomic.Bool
	s.Server.Submit(func() { ran.Store(true) })
	s.State.Submit(func() { ran.Store(true) })
	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran.Load())
}
