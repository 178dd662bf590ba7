package rinoo

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// signalfdSiginfoSize matches struct signalfd_siginfo from <sys/signalfd.h>.
const signalfdSiginfoSize = 128

// SignalWatcher delivers POSIX signals as scheduler-suspendable events
// rather than through a process-wide signal.Notify channel, so a signal
// becomes just another fd a task can suspend on — the same
// "kernel fd -> decoded struct -> channel" adapter shape as Watcher
// (inotify.go), per spec.md §5's "signal safety" requirement that signal
// delivery not race with arbitrary suspension points.
type SignalWatcher struct {
	fd    int
	sched *Scheduler
	task  *Task
}

// NewSignalWatcher blocks the given signals with pthread_sigmask (so they
// queue in the signalfd instead of invoking a default disposition) and
// returns a watcher that can be polled like any other fd. The mask change
// applies only to the OS thread the caller is running on; other threads'
// masks are unchanged.
func NewSignalWatcher(sched *Scheduler, t *Task, signals ...unix.Signal) (*SignalWatcher, error) {
	var set unix.Sigset_t
	for _, sig := range signals {
		addSignal(&set, sig)
	}
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		return nil, ioError("signal.block", err)
	}
	fd, err := unix.Signalfd(-1, &set, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC)
	if err != nil {
		return nil, ioError("signal.init", err)
	}
	return &SignalWatcher{fd: fd, sched: sched, task: t}, nil
}

// addSignal sets sig's bit in set. Sigset_t is a fixed [16]uint64 bitmask
// (linux/amd64); signal numbers are 1-based.
func addSignal(set *unix.Sigset_t, sig unix.Signal) {
	word := (int(sig) - 1) / 64
	bit := uint64(1) << uint((int(sig)-1)%64)
	set.Val[word] |= bit
}

// Next blocks (suspending the calling task) until a signal arrives, and
// returns its number.
func (w *SignalWatcher) Next() (unix.Signal, error) {
	buf := make([]byte, signalfdSiginfoSize)
	for {
		n, err := unix.Read(w.fd, buf)
		if err == nil && n >= 4 {
			return unix.Signal(binary.LittleEndian.Uint32(buf[0:4])), nil
		}
		if err != nil && err != unix.EAGAIN {
			return 0, ioError("signal.read", err)
		}
		reason := w.sched.waitFD(w.task, w.fd, true, 0)
		if reason == wakeCancelled {
			return 0, ErrCancelled
		}
	}
}

// Close releases the signalfd.
func (w *SignalWatcher) Close() error {
	return closeFD(w.fd)
}
