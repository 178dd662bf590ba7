package rinoo

import (
	"context"
	"fmt"
	"sync"
)

// Pool is a fixed set of worker threads, each running an independent
// Scheduler. Grounded on the original C spawn.h's t_rinoosched_spawns:
// stable index-based access to each worker's scheduler (spawn_get), and
// explicit unregister-then-register handoff when moving an fd from one
// worker's scheduler to another's (no implicit migration).
type Pool struct {
	schedulers []*Scheduler
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	errs       []error
	errMu      sync.Mutex
}

// NewPool creates count workers, each with its own Scheduler, but does not
// start them; call Start to begin running.
func NewPool(count int, opts ...SchedulerOption) (*Pool, error) {
	if count <= 0 {
		return nil, wrapf(ErrInvalidArgument, "spawn: count must be positive")
	}
	p := &Pool{schedulers: make([]*Scheduler, count)}
	for i := 0; i < count; i++ {
		s, err := NewScheduler(opts...)
		if err != nil {
			for j := 0; j < i; j++ {
				_ = p.schedulers[j].Destroy()
			}
			return nil, fmt.Errorf("spawn: worker %d: %w", i, err)
		}
		p.schedulers[i] = s
	}
	return p, nil
}

// Count returns the number of workers in the pool.
func (p *Pool) Count() int { return len(p.schedulers) }

// Get returns the i'th worker's scheduler. Index is stable for the pool's
// lifetime, matching rinoo_spawn_get's contract.
func (p *Pool) Get(i int) *Scheduler {
	return p.schedulers[i]
}

// Start launches one goroutine (standing in for the original's pthread)
// per worker, each running its scheduler's Loop until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for _, s := range p.schedulers {
		s := s
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := s.Loop(ctx); err != nil && err != context.Canceled {
				p.errMu.Lock()
				p.errs = append(p.errs, err)
				p.errMu.Unlock()
			}
		}()
	}
}

// Stop requests every worker's scheduler stop, per rinoo_spawn_stop.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	for _, s := range p.schedulers {
		s.Stop()
	}
}

// Join blocks until every worker has exited, per rinoo_spawn_join.
func (p *Pool) Join() []error {
	p.wg.Wait()
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.errs
}

// Destroy releases every worker's scheduler resources, per
// rinoo_spawn_destroy. Call only after Join has returned.
func (p *Pool) Destroy() error {
	var first error
	for _, s := range p.schedulers {
		if err := s.Destroy(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Migrate moves sock from the scheduler owning srcIdx to dstIdx, unregistering
// the fd's node from the source before registering it on the target so it is
// never polled by two schedulers at once, and rebinds sock itself to the
// target scheduler and task so any suspending call it makes afterward waits
// in the right place. dstTask is typically a task freshly spawned on the
// target scheduler to drive the migrated connection.
func (p *Pool) Migrate(sock *Socket, srcIdx, dstIdx int, dstTask *Task) error {
	src := p.Get(srcIdx)
	dst := p.Get(dstIdx)
	fd := sock.FD()
	src.nodesMu.Lock()
	n, ok := src.nodes[fd]
	if ok {
		delete(src.nodes, fd)
	}
	src.nodesMu.Unlock()
	if ok && n.mask != 0 {
		if err := src.poller.UnregisterFD(fd); err != nil {
			return err
		}
	}
	dst.registerNode(fd)
	sock.Rebind(dst, dstTask)
	return nil
}
