// Package rinoo implements a single-process, multi-threaded asynchronous
// I/O runtime: a cooperative task scheduler built on goroutines and a
// baton-passing handoff protocol, an epoll-backed poller, a deadline-ordered
// timer wheel, a socket facade with a bounded-retry suspend/resume
// protocol, and a spawn pool of independent per-thread schedulers.
//
// A Task is a goroutine; a Scheduler runs exactly one Task at a time,
// resuming it with a wake reason and waiting for it to either suspend at an
// I/O wait point or finish. Sockets, the inotify Watcher, and the
// signalfd-backed SignalWatcher all suspend through the same primitive
// (Scheduler.waitFD), so any of them can appear at any point inside a
// Task's function body.
package rinoo
