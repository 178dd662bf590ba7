package rinoo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

var schedIDSeq atomic.Uint64

// Scheduler is a single-threaded task scheduler: one tick expires due
// timers, runs every ready task until it either suspends at an I/O wait
// point or returns, polls for readiness, resolves waiters, and reclaims
// finished tasks. Exactly one Task's goroutine executes application code at
// a time (the baton-passing protocol in task.go), matching spec.md's
// single-active-task invariant even though each Task is a real goroutine.
//
// Grounded structurally on the teacher's eventloop/loop.go Loop.tick(): the
// same shape (runTimers -> process queue -> poll -> drain -> reclaim), with
// Rinoo's node/task-waiter model standing in for the teacher's promise
// registry.
type Scheduler struct {
	id uint64

	state runState

	poller poller
	wake   *wakeFd

	nodesMu sync.Mutex
	nodes   map[int]*node

	timers *timerWheel

	readyMu sync.Mutex
	ready   []readyItem

	external   []func() *Task
	externalMu sync.Mutex

	tickCount uint64

	stopCh chan struct{}
}

type readyItem struct {
	task   *Task
	reason wakeReason
}

// SchedulerOption configures a Scheduler at construction time, mirroring
// the teacher's functional-options LoopOption pattern (options.go).
type SchedulerOption func(*schedulerConfig)

type schedulerConfig struct {
	poller poller
}

// WithPoller overrides the poller backend, primarily for tests.
func WithPoller(p poller) SchedulerOption {
	return func(c *schedulerConfig) { c.poller = p }
}

// NewScheduler constructs a Scheduler. The returned scheduler is in
// StateCreated; call Loop to run it.
func NewScheduler(opts ...SchedulerOption) (*Scheduler, error) {
	cfg := schedulerConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.poller == nil {
		cfg.poller = newPoller()
	}
	if err := cfg.poller.Init(); err != nil {
		return nil, err
	}
	wk, err := newWakeFd()
	if err != nil {
		_ = cfg.poller.Close()
		return nil, err
	}
	if err := cfg.poller.RegisterFD(wk.FD(), EventRead); err != nil {
		_ = wk.Close()
		_ = cfg.poller.Close()
		return nil, err
	}
	s := &Scheduler{
		id:     schedIDSeq.Add(1),
		poller: cfg.poller,
		wake:   wk,
		nodes:  make(map[int]*node),
		timers: newTimerWheel(),
		stopCh: make(chan struct{}),
	}
	s.state.Store(StateCreated)
	return s, nil
}

// ID returns the scheduler's process-unique identifier.
func (s *Scheduler) ID() uint64 { return s.id }

// clockBase anchors nowMillis; time.Since on it reads the monotonic clock.
var clockBase = time.Now()

// nowMillis is the scheduler's monotonic clock source for timer deadlines:
// milliseconds elapsed since clockBase, unaffected by wall-clock changes.
func nowMillis() int64 { return time.Since(clockBase).Milliseconds() }

// Spawn creates a new Task running fn and enqueues it as ready. Safe to call
// from any goroutine; calls from outside the scheduler's own loop goroutine
// are queued externally and picked up on the next tick (woken immediately
// via the wake fd).
func (s *Scheduler) Spawn(fn func(t *Task) error) *Task {
	t := newTask(s, fn)
	s.externalMu.Lock()
	s.external = append(s.external, func() *Task {
		t.start()
		s.enqueueReady(t, wakeNone)
		return t
	})
	s.externalMu.Unlock()
	_ = s.wake.Signal()
	return t
}

func (s *Scheduler) enqueueReady(t *Task, reason wakeReason) {
	t.state = taskReady
	t.reason = reason
	s.readyMu.Lock()
	s.ready = append(s.ready, readyItem{task: t, reason: reason})
	s.readyMu.Unlock()
}

func (s *Scheduler) requeue(t *Task) {
	s.enqueueReady(t, wakeNone)
}

// registerNode returns the node for fd, creating it if necessary.
func (s *Scheduler) registerNode(fd int) *node {
	s.nodesMu.Lock()
	defer s.nodesMu.Unlock()
	n, ok := s.nodes[fd]
	if !ok {
		n = newNode(s, fd)
		s.nodes[fd] = n
	}
	return n
}

func (s *Scheduler) releaseNodeIfIdle(n *node) {
	if !n.idle() {
		return
	}
	s.nodesMu.Lock()
	delete(s.nodes, n.fd)
	s.nodesMu.Unlock()
	_ = s.poller.UnregisterFD(n.fd)
}

// waitFD suspends the calling task until fd becomes ready for the given
// direction, the deadline (absolute monotonic millis; 0 means no deadline)
// elapses, or the wait is cancelled. This is the single suspension-point
// primitive every socket operation in socket.go funnels through.
func (s *Scheduler) waitFD(t *Task, fd int, read bool, deadlineMillis int64) wakeReason {
	n := s.registerNode(fd)
	n.setWaiter(read, t)
	t.node = n
	t.waitRead = read

	wantMask := n.wantMask()
	var err error
	if n.mask == 0 {
		err = s.poller.RegisterFD(fd, wantMask)
	} else if n.mask != wantMask {
		err = s.poller.ModifyFD(fd, wantMask)
	}
	if err != nil {
		n.setWaiter(read, nil)
		return wakeIO
	}
	n.mask = wantMask

	if deadlineMillis > 0 {
		t.timer = s.timers.Arm(n, deadlineMillis)
		n.timer = t.timer
	}

	reason := t.suspend()

	n.setWaiter(read, nil)
	if t.timer != nil {
		s.timers.Cancel(t.timer)
		t.timer = nil
		n.timer = nil
	}
	remaining := n.wantMask()
	if remaining != n.mask {
		if remaining == 0 {
			s.releaseNodeIfIdle(n)
		} else {
			_ = s.poller.ModifyFD(fd, remaining)
			n.mask = remaining
		}
	}
	t.node = nil
	return reason
}

// sleep suspends t for at least millis milliseconds without waiting on any
// fd, the timer-only suspension point behind Task.Wait — spec.md §5/§6's
// task_wait(ms). Returns ErrCancelled if Release fires before the deadline.
func (s *Scheduler) sleep(t *Task, millis int64) error {
	e := s.timers.ArmSleeper(t, nowMillis()+millis)
	t.timer = e

	reason := t.suspend()

	if t.timer == e {
		s.timers.Cancel(e)
		t.timer = nil
	}
	switch reason {
	case wakeTimeout:
		return nil
	case wakeCancelled:
		return ErrCancelled
	default:
		return wrapf(ErrIO, "scheduler: wait: unexpected wake reason")
	}
}

// Release cancels a currently suspended task t — waiting on an fd via
// waitFD or sleeping via sleep — waking it immediately with wakeCancelled.
// Spec.md §6's task_release. Safe to call from any goroutine: like Spawn,
// the actual state mutation runs on the scheduler's own loop goroutine via
// the external queue, so it never races with runStep/tick. A no-op if t is
// not currently suspended.
func (s *Scheduler) Release(t *Task) {
	s.externalMu.Lock()
	s.external = append(s.external, func() *Task {
		if t.state == taskSuspended {
			s.enqueueReady(t, wakeCancelled)
		}
		return nil
	})
	s.externalMu.Unlock()
	_ = s.wake.Signal()
}

// runStep runs task through one baton handoff: resumes it with reason and
// blocks until it yields control back, either by suspending or finishing.
func (s *Scheduler) runStep(item readyItem) {
	t := item.task
	t.state = taskRunning
	t.resume <- item.reason
	<-t.yield
	select {
	case <-t.done:
		t.state = taskZombie
	default:
		t.state = taskSuspended
	}
}

// drainExternal moves externally-submitted tasks into the internal ready
// queue, running their start() side effects on the loop goroutine.
func (s *Scheduler) drainExternal() {
	s.externalMu.Lock()
	batch := s.external
	s.external = nil
	s.externalMu.Unlock()
	for _, fn := range batch {
		fn()
	}
}

// tick runs one scheduler iteration: expire timers, run every ready task
// to its next suspension point, poll for I/O readiness, resolve waiters,
// and reclaim finished tasks. Mirrors the teacher's Loop.tick() shape.
func (s *Scheduler) tick() error {
	s.drainExternal()

	now := nowMillis()
	for _, e := range s.timers.Expire(now) {
		if e.sleeper != nil {
			s.enqueueReady(e.sleeper, wakeTimeout)
			continue
		}
		n := e.node
		if n == nil {
			continue
		}
		if n.waitIn != nil && n.waitIn.timer == e {
			s.enqueueReady(n.waitIn, wakeTimeout)
		}
		if n.waitOut != nil && n.waitOut.timer == e {
			s.enqueueReady(n.waitOut, wakeTimeout)
		}
	}

	s.readyMu.Lock()
	batch := s.ready
	s.ready = nil
	s.readyMu.Unlock()
	for _, item := range batch {
		s.runStep(item)
	}

	timeout := s.calculateTimeout()
	events, err := s.poller.Wait(timeout)
	if err != nil {
		logWarn("poll", "poller wait failed", err)
		return err
	}

	for _, ev := range events {
		if ev.fd == s.wake.FD() {
			s.wake.Drain()
			continue
		}
		s.nodesMu.Lock()
		n := s.nodes[ev.fd]
		s.nodesMu.Unlock()
		if n == nil {
			continue
		}
		// IN-before-OUT tie-break on dual readiness, per spec.md §4.5.
		if ev.events.Readable() && n.waitIn != nil {
			s.enqueueReady(n.waitIn, wakeIO)
		}
		if ev.events.Writable() && n.waitOut != nil {
			s.enqueueReady(n.waitOut, wakeIO)
		}
	}

	s.tickCount++
	return nil
}

// calculateTimeout returns 0 while a task is already ready (e.g. one that
// called Yield); otherwise it bounds the poll wait by the next timer
// deadline, capped at 10s to stay responsive to external Submit/Stop calls,
// matching the teacher's calculateTimeout cap.
func (s *Scheduler) calculateTimeout() int {
	const maxTimeoutMillis = 10_000
	s.readyMu.Lock()
	pending := len(s.ready)
	s.readyMu.Unlock()
	if pending > 0 {
		return 0
	}
	deadline, ok := s.timers.NextDeadline()
	if !ok {
		return maxTimeoutMillis
	}
	remaining := deadline - nowMillis()
	if remaining < 0 {
		return 0
	}
	if remaining > maxTimeoutMillis {
		return maxTimeoutMillis
	}
	return int(remaining)
}

// Loop runs the scheduler until ctx is cancelled or Stop is called.
func (s *Scheduler) Loop(ctx context.Context) error {
	if !s.state.TryTransition(StateCreated, StateRunning) {
		return wrapf(ErrInvalidArgument, "scheduler: already running or stopped")
	}
	defer s.state.Store(StateStopped)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		default:
		}
		if err := s.tick(); err != nil {
			return err
		}
	}
}

// Stop requests the loop exit at the start of its next tick.
func (s *Scheduler) Stop() {
	if s.state.TryTransition(StateRunning, StateStopping) {
		close(s.stopCh)
	}
}

// Destroy releases the poller and wake fd. Call only after Loop has
// returned.
func (s *Scheduler) Destroy() error {
	err1 := s.poller.Close()
	err2 := s.wake.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
