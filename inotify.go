package rinoo

import (
	"encoding/binary"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// InotifyEvent is a decoded filesystem change notification.
type InotifyEvent struct {
	Path string
	Mask uint32
}

// Watcher streams inotify events through the scheduler's task/node waiter
// protocol, the same "kernel fd -> decoded event struct -> channel" shape
// used by the eventloop teacher's fd-readiness plumbing in general, applied
// here to inotify specifically since that adapter doesn't exist in the
// corpus verbatim.
type Watcher struct {
	fd     int
	sched  *Scheduler
	task   *Task
	paths  map[int32]string
	events chan InotifyEvent
	errs   chan error
}

// NewWatcher creates a nonblocking inotify instance. It starts no task of
// its own: Event reads and decodes events on task t, suspending on sched.
func NewWatcher(sched *Scheduler, t *Task) (*Watcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, ioError("inotify.init", err)
	}
	w := &Watcher{
		fd:     fd,
		sched:  sched,
		task:   t,
		paths:  make(map[int32]string),
		events: make(chan InotifyEvent, 64),
		errs:   make(chan error, 1),
	}
	return w, nil
}

// AddWatch arms a watch on path for the given event mask. recursive adds
// watches on every existing subdirectory as well; it does not track
// directories created afterward.
func (w *Watcher) AddWatch(path string, mask uint32, recursive bool) error {
	wd, err := unix.InotifyAddWatch(w.fd, path, mask)
	if err != nil {
		return ioError("inotify.add_watch", err)
	}
	w.paths[int32(wd)] = path
	if !recursive {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(path, "*"))
	if err != nil {
		return nil
	}
	for _, m := range matches {
		if fi, statErr := statIsDir(m); statErr == nil && fi {
			if err := w.AddWatch(m, mask, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func statIsDir(path string) (bool, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false, err
	}
	return st.Mode&unix.S_IFMT == unix.S_IFDIR, nil
}

const inotifyEventHeaderSize = 16 // wd, mask, cookie, len; name follows

// Event blocks (suspending the calling task) until the next decoded
// inotify event is available.
func (w *Watcher) Event() (InotifyEvent, error) {
	for {
		select {
		case e := <-w.events:
			return e, nil
		case err := <-w.errs:
			return InotifyEvent{}, err
		default:
		}
		if err := w.readOnce(); err != nil {
			return InotifyEvent{}, err
		}
	}
}

func (w *Watcher) readOnce() error {
	buf := make([]byte, 4096)
	n, err := unix.Read(w.fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			reason := w.sched.waitFD(w.task, w.fd, true, 0)
			if reason == wakeCancelled {
				return ErrCancelled
			}
			return nil
		}
		return ioError("inotify.read", err)
	}
	off := 0
	for off+inotifyEventHeaderSize <= n {
		wd := int32(binary.LittleEndian.Uint32(buf[off:]))
		mask := binary.LittleEndian.Uint32(buf[off+4:])
		nameLen := binary.LittleEndian.Uint32(buf[off+12:])
		nameStart := off + inotifyEventHeaderSize
		name := ""
		if nameLen > 0 {
			raw := buf[nameStart : nameStart+int(nameLen)]
			if idx := indexNull(raw); idx >= 0 {
				name = string(raw[:idx])
			} else {
				name = string(raw)
			}
		}
		path := w.paths[wd]
		if name != "" {
			path = filepath.Join(path, name)
		}
		w.events <- InotifyEvent{Path: path, Mask: mask}
		off = nameStart + int(nameLen)
	}
	return nil
}

func indexNull(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

// Close releases the inotify fd.
func (w *Watcher) Close() error {
	return closeFD(w.fd)
}
