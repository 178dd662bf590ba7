package rinoo

// node is the per-fd bookkeeping record a Scheduler maintains while an fd is
// registered with its poller: which task (if any) is waiting to read,
// which is waiting to write, the currently-armed poll mask, and an optional
// timeout timer. The erred/hungup fields are never set: error and hangup
// readiness wakes the waiters like ordinary readiness, and the retried
// syscall reports the error.
//
// Exactly one IN waiter and one OUT waiter may be registered at a time,
// matching spec.md's node contract. waitFD removes a node and unregisters
// its fd once the last waiter leaves. mask is 0 while the fd is not
// registered, as for the node Pool.Migrate creates on the target scheduler
// before the first wait there.
type node struct {
	fd    int
	sched *Scheduler

	waitIn  *task
	waitOut *task

	mask IOEvents

	timer *timerEntry

	erred  bool
	hungup bool
}

func newNode(sched *Scheduler, fd int) *node {
	return &node{fd: fd, sched: sched}
}

// wantMask computes the poll mask implied by the current waiters.
func (n *node) wantMask() IOEvents {
	var m IOEvents
	if n.waitIn != nil {
		m |= EventRead
	}
	if n.waitOut != nil {
		m |= EventWrite
	}
	return m
}

// waiterFor returns the waiter task for the given direction, true if read.
func (n *node) waiterFor(read bool) *task {
	if read {
		return n.waitIn
	}
	return n.waitOut
}

func (n *node) setWaiter(read bool, t *task) {
	if read {
		n.waitIn = t
	} else {
		n.waitOut = t
	}
}

func (n *node) idle() bool {
	return n.waitIn == nil && n.waitOut == nil
}
