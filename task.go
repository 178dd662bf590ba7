package rinoo

import "sync/atomic"

// taskState mirrors spec.md's Ready/Running/Suspended/Zombie state machine.
type taskState int32

const (
	taskReady taskState = iota
	taskRunning
	taskSuspended
	taskZombie
)

// wakeReason tells a resumed task why it was woken.
type wakeReason int32

const (
	wakeNone wakeReason = iota
	wakeIO
	wakeTimeout
	wakeCancelled
)

var taskIDSeq atomic.Uint64

// Task is a single cooperatively-scheduled unit of execution. Per §2 of
// SPEC_FULL.md, a Task is backed by a real goroutine (Go's own growable
// per-goroutine stack stands in for the "stackful coroutine" the original C
// implementation hand-rolls via swapcontext). A Scheduler runs at most one
// Task's goroutine at a time, handing it a baton (an unbuffered channel
// receive) and blocking on the matching yield channel until that goroutine
// either suspends at an I/O wait point or returns.
type Task struct {
	id    uint64
	sched *Scheduler
	fn    func(t *Task) error

	state taskState

	resume chan wakeReason
	yield  chan struct{}

	node     *node
	waitRead bool
	reason   wakeReason
	timer    *timerEntry

	err  error
	done chan struct{}
}

func newTask(sched *Scheduler, fn func(t *Task) error) *Task {
	return &Task{
		id:     taskIDSeq.Add(1),
		sched:  sched,
		fn:     fn,
		state:  taskReady,
		resume: make(chan wakeReason),
		yield:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// ID returns the task's scheduler-unique identifier.
func (t *Task) ID() uint64 { return t.id }

// Err returns the error the task's function returned, valid once the task
// has reached the Zombie state.
func (t *Task) Err() error { return t.err }

// start launches the task's goroutine. It blocks on the baton immediately;
// the Scheduler must send the first resume signal to let it actually run.
func (t *Task) start() {
	go func() {
		<-t.resume
		t.err = t.fn(t)
		close(t.done)
		t.yield <- struct{}{}
	}()
}

// suspend blocks the calling (task) goroutine until the Scheduler resumes
// it, handing control back to the Scheduler in the meantime. Call only from
// within the task's own goroutine (i.e. from code running inside fn).
func (t *Task) suspend() wakeReason {
	t.yield <- struct{}{}
	return <-t.resume
}

// Yield cooperatively gives up the remainder of the current tick without
// blocking on I/O, re-entering the ready queue at the back.
func (t *Task) Yield() {
	t.sched.requeue(t)
	t.suspend()
}

// Wait suspends the task for at least millis milliseconds without waiting
// on any fd, matching spec.md §5/§6's task_wait(ms). Returns ErrCancelled
// if the Scheduler's Release is called on this task before the timer
// fires. Call only from within the task's own goroutine.
func (t *Task) Wait(millis int64) error {
	return t.sched.sleep(t, millis)
}
