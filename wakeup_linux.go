//go:build linux

package rinoo

import "golang.org/x/sys/unix"

// wakeFd is an eventfd-backed cross-thread wakeup primitive, used to break a
// Scheduler out of a blocking poller.Wait call when work is submitted from
// another goroutine. Grounded directly on the teacher's
// eventloop/wakeup_linux.go (createWakeFd/closeWakeFd/drainWakeUpPipe),
// reshaped from free functions operating on a global loop into a small
// value type since Rinoo runs one Scheduler per goroutine/thread in a Pool
// rather than a single process-wide loop.
type wakeFd struct {
	fd int32
}

func newWakeFd() (*wakeFd, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, ioError("wakeup.create", err)
	}
	return &wakeFd{fd: int32(fd)}, nil
}

func (w *wakeFd) FD() int { return int(w.fd) }

// Signal posts a single wakeup. Safe to call from any goroutine.
func (w *wakeFd) Signal() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(int(w.fd), buf[:])
	if err != nil && err != unix.EAGAIN {
		return ioError("wakeup.signal", err)
	}
	return nil
}

// Drain consumes all pending wakeups, collapsing however many Signal calls
// happened into a single poll-loop iteration.
func (w *wakeFd) Drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(int(w.fd), buf[:])
		if err != nil {
			return
		}
	}
}

func (w *wakeFd) Close() error {
	return unix.Close(int(w.fd))
}
