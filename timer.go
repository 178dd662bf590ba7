package rinoo

import "sort"

// timerEntry is a single armed deadline, owned by exactly one node or one
// sleeping task at a time (never both). Deadlines are absolute monotonic
// milliseconds (on the nowMillis clock in scheduler.go), ties broken
// by insertion sequence.
type timerEntry struct {
	deadline int64
	seq      uint64
	node     *node
	sleeper  *Task
}

// timerWheel is a deadline-ordered sequence of armed timers. The storage
// shape — a growable slice kept sorted by binary-search insert, searched and
// trimmed from the front — is adapted from catrate's generic ringBuffer
// (ring.go): that type keeps an ordered sequence of rate-limit timestamps
// with an insertion-order binary search and a RemoveBefore sweep, which is
// exactly the "ordered-by-deadline, expire-from-the-front" shape a timer
// wheel needs. We use a plain slice instead of catrate's power-of-2 ring
// because timers are armed/canceled far more sparsely than per-request rate
// samples, so the wraparound ring's O(1) push isn't worth its complexity
// here; the sorted-insert/binary-search discipline is what we kept.
type timerWheel struct {
	entries []*timerEntry
	nextSeq uint64
}

func newTimerWheel() *timerWheel {
	return &timerWheel{}
}

// Arm inserts a new timer entry for node at the given absolute deadline,
// maintaining sort order by (deadline, seq).
func (w *timerWheel) Arm(nd *node, deadlineMillis int64) *timerEntry {
	e := &timerEntry{deadline: deadlineMillis, seq: w.nextSeq, node: nd}
	w.nextSeq++
	idx := sort.Search(len(w.entries), func(i int) bool {
		return w.entries[i].deadline > e.deadline ||
			(w.entries[i].deadline == e.deadline && w.entries[i].seq > e.seq)
	})
	w.entries = append(w.entries, nil)
	copy(w.entries[idx+1:], w.entries[idx:])
	w.entries[idx] = e
	return e
}

// ArmSleeper inserts a node-less timer entry for a task sleeping via
// task_wait(ms) (spec.md §5/§6): no fd is involved, so expiry just enqueues
// the sleeper directly rather than resolving a node's waiters.
func (w *timerWheel) ArmSleeper(t *Task, deadlineMillis int64) *timerEntry {
	e := &timerEntry{deadline: deadlineMillis, seq: w.nextSeq, sleeper: t}
	w.nextSeq++
	idx := sort.Search(len(w.entries), func(i int) bool {
		return w.entries[i].deadline > e.deadline ||
			(w.entries[i].deadline == e.deadline && w.entries[i].seq > e.seq)
	})
	w.entries = append(w.entries, nil)
	copy(w.entries[idx+1:], w.entries[idx:])
	w.entries[idx] = e
	return e
}

// Cancel removes e from the wheel. A no-op if e has already expired and been
// removed.
func (w *timerWheel) Cancel(e *timerEntry) {
	for i, cur := range w.entries {
		if cur == e {
			w.entries = append(w.entries[:i], w.entries[i+1:]...)
			return
		}
	}
}

// NextDeadline returns the soonest armed deadline and whether any timer is
// armed at all.
func (w *timerWheel) NextDeadline() (int64, bool) {
	if len(w.entries) == 0 {
		return 0, false
	}
	return w.entries[0].deadline, true
}

// Expire removes and returns every entry whose deadline is <= now.
func (w *timerWheel) Expire(now int64) []*timerEntry {
	idx := sort.Search(len(w.entries), func(i int) bool {
		return w.entries[i].deadline > now
	})
	if idx == 0 {
		return nil
	}
	expired := make([]*timerEntry, idx)
	copy(expired, w.entries[:idx])
	w.entries = w.entries[idx:]
	return expired
}

// Len reports the number of currently armed timers.
func (w *timerWheel) Len() int { return len(w.entries) }
