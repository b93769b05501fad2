package rsm

import "sync"

type task func()

// execContext is a single-threaded cooperative executor: one goroutine
// draining its own buffered task channel. It is the direct Go rendering of
// "single-threaded cooperative context" from the design: never an OS thread
// pool, never a fiber scheduler. Tasks never block inside it — they must
// complete or delegate (Call) to the other context.
type execContext struct {
	tasks  chan task
	stopCh chan struct{}
	once   sync.Once
}

func newExecContext(queueDepth int) *execContext {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	c := &execContext{
		tasks:  make(chan task, queueDepth),
		stopCh: make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *execContext) run() {
	for {
		select {
		case t := <-c.tasks:
			t()
		case <-c.stopCh:
			return
		}
	}
}

// Submit enqueues a task and returns without waiting for it to run.
func (c *execContext) Submit(t task) {
	select {
	case c.tasks <- t:
	case <-c.stopCh:
	}
}

// Call submits a task and blocks until it has run — an explicit task hop
// with a synchronous result, used whenever the server context needs the
// state context to do something before it can proceed.
func (c *execContext) Call(t task) {
	done := make(chan struct{})
	c.Submit(func() {
		defer close(done)
		t()
	})
	<-done
}

func (c *execContext) Stop() {
	c.once.Do(func() { close(c.stopCh) })
}

// Scheduler owns the two logical cooperative contexts: the server context
// (Raft thread: log reader advancement, apply sequencing, snapshot timers)
// and the state context (all ServiceContext execution and snapshot I/O).
// The manager hops between them at the points described in §5.
type Scheduler struct {
	Server *execContext
	State  *execContext
}

// NewScheduler constructs both contexts with the configured queue depths.
func NewScheduler(cfg Config) *Scheduler {
	return &Scheduler{
		Server: newExecContext(cfg.ServerContextQueueDepth),
		State:  newExecContext(cfg.StateContextQueueDepth),
	}
}

// Stop halts both contexts. In-flight tasks already dequeued finish;
// queued-but-undequeued tasks are dropped.
func (s *Scheduler) Stop() {
	s.Server.Stop()
	s.State.Stop()
}
