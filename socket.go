package rinoo

import (
	"bytes"

	"golang.org/x/sys/unix"

	"github.com/qmwd2006/rinoo/buffer"
)

// maxIOCalls is the per-operation consecutive-retry budget carried over
// from the original C header's MAX_IO_CALLS (include/rinoo/net/socket.h):
// an operation that hits EAGAIN/suspends this many times in a row without
// making progress gives up with ErrLimitExceeded rather than retrying
// forever against a misbehaving peer.
const maxIOCalls = 10

// Socket is the scheduler-aware facade over a nonblocking file descriptor.
// Every blocking-looking method funnels through the suspend/resume protocol
// in scheduler.waitFD: try the nonblocking syscall, and on EAGAIN suspend
// the calling task until the fd is ready, the deadline elapses, or the wait
// is cancelled, then retry — bounded by maxIOCalls.
type Socket struct {
	fd      int
	sched   *Scheduler
	task    *Task
	ioCalls int

	readBuf *buffer.Buffer

	timeoutMillis int64
}

// newSocket wraps fd for use by t on sched. fd must already be set
// nonblocking.
func newSocket(sched *Scheduler, t *Task, fd int) *Socket {
	return &Socket{fd: fd, sched: sched, task: t}
}

// Rebind transfers ownership of the socket to t, running on sched, so that
// subsequent suspending operations wait on sched/t rather than whichever
// task originally created the socket. This is required for an accepted
// connection: Accept hands back a Socket still bound to the listener's own
// task, and the handler task Spawn creates to drive the connection must
// rebind it before issuing any suspending call, or that call would suspend
// the listener's task instead of the one actually waiting on it.
func (s *Socket) Rebind(sched *Scheduler, t *Task) {
	s.sched = sched
	s.task = t
	s.ioCalls = 0
}

// Socket4 creates a nonblocking IPv4 TCP socket.
func Socket4(sched *Scheduler, t *Task) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, ioError("socket.create", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, ioError("socket.nonblock", err)
	}
	return newSocket(sched, t, fd), nil
}

// FD returns the underlying file descriptor.
func (s *Socket) FD() int { return s.fd }

// SetTimeout sets the deadline (relative, in milliseconds) applied to
// subsequent suspending operations. Zero disables the deadline.
func (s *Socket) SetTimeout(millis int64) { s.timeoutMillis = millis }

func (s *Socket) deadline() int64 {
	if s.timeoutMillis <= 0 {
		return 0
	}
	return nowMillis() + s.timeoutMillis
}

// Close unregisters and closes the fd.
func (s *Socket) Close() error {
	s.sched.nodesMu.Lock()
	n, ok := s.sched.nodes[s.fd]
	if ok {
		delete(s.sched.nodes, s.fd)
	}
	s.sched.nodesMu.Unlock()
	if ok && n.mask != 0 {
		_ = s.sched.poller.UnregisterFD(s.fd)
	}
	return closeFD(s.fd)
}

// suspendFor waits for fd readiness in the given direction, resetting or
// accumulating the io_calls fairness counter, and translates the wake
// reason into an error (nil on IO readiness).
func (s *Socket) suspendFor(read bool) error {
	s.ioCalls++
	if s.ioCalls > maxIOCalls {
		s.ioCalls = 0
		return wrapf(ErrLimitExceeded, "socket: exceeded %d consecutive retries", maxIOCalls)
	}
	reason := s.sched.waitFD(s.task, s.fd, read, s.deadline())
	switch reason {
	case wakeIO:
		return nil
	case wakeTimeout:
		return ErrTimeout
	case wakeCancelled:
		return ErrCancelled
	default:
		return ioError("socket.wait", unix.EIO)
	}
}

// Connect connects to addr, suspending until the connect completes or fails.
func (s *Socket) Connect(addr Addr) error {
	err := unix.Connect(s.fd, addr.sockaddr())
	if err == nil {
		return nil
	}
	if err != unix.EINPROGRESS && err != unix.EAGAIN {
		return ioError("socket.connect", err)
	}
	if werr := s.suspendFor(false); werr != nil {
		return werr
	}
	soErr, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return ioError("socket.connect", err)
	}
	if soErr != 0 {
		return ioError("socket.connect", unix.Errno(soErr))
	}
	return nil
}

// Bind binds the socket to addr.
func (s *Socket) Bind(addr Addr) error {
	if err := unix.Bind(s.fd, addr.sockaddr()); err != nil {
		return ioError("socket.bind", err)
	}
	return nil
}

// Listen marks the socket as listening with the given backlog.
func (s *Socket) Listen(backlog int) error {
	if err := unix.Listen(s.fd, backlog); err != nil {
		return ioError("socket.listen", err)
	}
	return nil
}

// Accept accepts one connection, suspending until one is pending. The
// returned Socket is initially bound to the same scheduler/task as the
// listener; callers that hand the connection off to a separately spawned
// task must call Rebind on it before issuing any suspending operation, or
// that operation would suspend the listener's task instead.
func (s *Socket) Accept() (*Socket, error) {
	for {
		nfd, _, err := unix.Accept(s.fd)
		if err == nil {
			s.ioCalls = 0
			_ = unix.SetNonblock(nfd, true)
			return newSocket(s.sched, s.task, nfd), nil
		}
		if err != unix.EAGAIN {
			return nil, ioError("socket.accept", err)
		}
		if werr := s.suspendFor(true); werr != nil {
			return nil, werr
		}
	}
}

// Read reads into buf, suspending on EAGAIN. Returns 0, ErrClosed on EOF.
func (s *Socket) Read(buf []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, buf)
		if err == nil {
			s.ioCalls = 0
			if n == 0 {
				return 0, ErrClosed
			}
			return n, nil
		}
		if err != unix.EAGAIN {
			return 0, ioError("socket.read", err)
		}
		if werr := s.suspendFor(true); werr != nil {
			return 0, werr
		}
	}
}

// Write writes buf in full, suspending on EAGAIN and resuming from where it
// left off.
func (s *Socket) Write(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := unix.Write(s.fd, buf[total:])
		if err == nil {
			s.ioCalls = 0
			total += n
			continue
		}
		if err != unix.EAGAIN {
			return total, ioError("socket.write", err)
		}
		if werr := s.suspendFor(false); werr != nil {
			return total, werr
		}
	}
	return total, nil
}

// Writev writes multiple buffers in order, as a sequence of Write calls.
func (s *Socket) Writev(bufs [][]byte) (int, error) {
	total := 0
	for _, b := range bufs {
		n, err := s.Write(b)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// RecvFrom reads a single datagram along with the sender's address.
func (s *Socket) RecvFrom(buf []byte) (int, Addr, error) {
	for {
		n, from, err := unix.Recvfrom(s.fd, buf, 0)
		if err == nil {
			s.ioCalls = 0
			return n, sockaddrToAddr(from), nil
		}
		if err != unix.EAGAIN {
			return 0, Addr{}, ioError("socket.recvfrom", err)
		}
		if werr := s.suspendFor(true); werr != nil {
			return 0, Addr{}, werr
		}
	}
}

// SendTo sends a single datagram to addr.
func (s *Socket) SendTo(buf []byte, addr Addr) (int, error) {
	for {
		err := unix.Sendto(s.fd, buf, 0, addr.sockaddr())
		if err == nil {
			s.ioCalls = 0
			return len(buf), nil
		}
		if err != unix.EAGAIN {
			return 0, ioError("socket.sendto", err)
		}
		if werr := s.suspendFor(false); werr != nil {
			return 0, werr
		}
	}
}

// Sendfile copies count bytes from src (an open regular-file fd) to the
// socket starting at offset, suspending on backpressure.
func (s *Socket) Sendfile(src int, offset int64, count int) (int, error) {
	off := offset
	remaining := count
	total := 0
	for remaining > 0 {
		n, err := unix.Sendfile(s.fd, src, &off, remaining)
		if err == nil {
			if n == 0 {
				return total, ErrClosed
			}
			s.ioCalls = 0
			total += n
			remaining -= n
			continue
		}
		if err != unix.EAGAIN {
			return total, ioError("socket.sendfile", err)
		}
		if werr := s.suspendFor(false); werr != nil {
			return total, werr
		}
	}
	return total, nil
}

func (s *Socket) ensureReadBuf() *buffer.Buffer {
	if s.readBuf == nil {
		s.readBuf, _ = buffer.New(buffer.DefaultClass(4096, 1<<20))
	}
	return s.readBuf
}

// fillReadBuf reads at least one chunk of socket data into the internal
// read buffer, suspending as needed.
func (s *Socket) fillReadBuf() error {
	b := s.ensureReadBuf()
	chunk := make([]byte, 4096)
	n, err := s.Read(chunk)
	if err != nil {
		return err
	}
	_, err = b.Add(chunk[:n])
	return err
}

// Readb reads exactly n bytes into dst, buffering and suspending as needed.
func (s *Socket) Readb(dst *buffer.Buffer, n int) error {
	b := s.ensureReadBuf()
	for b.Size() < n {
		if err := s.fillReadBuf(); err != nil {
			return err
		}
	}
	if _, err := dst.Add(b.Bytes()[:n]); err != nil {
		return err
	}
	return b.Erase(n)
}

// Readline reads up to and including delim, per the Open Question resolved
// in SPEC_FULL.md §8: the delimiter is included in dst. maxsize bounds how
// much unterminated data may accumulate looking for delim; once the
// buffered-so-far length exceeds it without a delim in sight, it returns
// ErrLimitExceeded deterministically rather than relying on the internal
// read buffer's own (much larger) growth cap.
func (s *Socket) Readline(dst *buffer.Buffer, delim byte, maxsize int) error {
	b := s.ensureReadBuf()
	for {
		if idx := bytes.IndexByte(b.Bytes(), delim); idx >= 0 {
			if idx+1 > maxsize {
				return wrapf(ErrLimitExceeded, "socket: readline: line of %d bytes exceeds maxsize %d", idx+1, maxsize)
			}
			if _, err := dst.Add(b.Bytes()[:idx+1]); err != nil {
				return err
			}
			return b.Erase(idx + 1)
		}
		if b.Size() >= maxsize {
			return wrapf(ErrLimitExceeded, "socket: readline: no delimiter within maxsize %d", maxsize)
		}
		if err := s.fillReadBuf(); err != nil {
			return err
		}
	}
}

// Expect reads exactly len(want) bytes and compares them against want. On
// mismatch, per SPEC_FULL.md §8, the read buffer is left untouched (the
// matched-so-far bytes are not consumed) and ErrIO is returned.
func (s *Socket) Expect(want []byte) error {
	b := s.ensureReadBuf()
	for b.Size() < len(want) {
		if err := s.fillReadBuf(); err != nil {
			return err
		}
	}
	if !bytes.Equal(b.Bytes()[:len(want)], want) {
		return ErrIO
	}
	return b.Erase(len(want))
}

// Writeb writes the full logical contents of src.
func (s *Socket) Writeb(src *buffer.Buffer) (int, error) {
	return s.Write(src.Bytes())
}

func sockaddrToAddr(sa unix.Sockaddr) Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		a := Addr{family: unix.AF_INET}
		a.ipv4 = *v
		return a
	case *unix.SockaddrInet6:
		a := Addr{family: unix.AF_INET6}
		a.ipv6 = *v
		return a
	default:
		return Addr{}
	}
}
