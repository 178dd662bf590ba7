package rinoo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qmwd2006/rinoo/buffer"
)

// TestPoolMigrateRebindsSocket exercises spawn.go's cross-worker handoff
// (rinoo_spawn_migrate's analogue): a socket accepted on worker 0 is
// migrated to worker 1 and driven there by a freshly spawned task, which
// only works if Migrate also rebinds the socket's scheduler/task, not just
// the fd's node entry.
func TestPoolMigrateRebindsSocket(t *testing.T) {
	pool, err := NewPool(2)
	require.NoError(t, err)
	defer pool.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	const port = 18875
	result := make(chan string, 1)
	errs := make(chan error, 3)

	srcSched := pool.Get(0)
	dstSched := pool.Get(1)

	srcSched.Spawn(func(srvTask *Task) error {
		srv, err := Socket4(srcSched, srvTask)
		if err != nil {
			errs <- err
			return err
		}
		addr, err := Addr4("127.0.0.1", port)
		if err != nil {
			errs <- err
			return err
		}
		if err := srv.Bind(addr); err != nil {
			errs <- err
			return err
		}
		if err := srv.Listen(16); err != nil {
			errs <- err
			return err
		}
		conn, err := srv.Accept()
		if err != nil {
			errs <- err
			return err
		}
		dstSched.Spawn(func(handlerTask *Task) error {
			if err := pool.Migrate(conn, 0, 1, handlerTask); err != nil {
				errs <- err
				return err
			}
			line, _ := buffer.New(nil)
			if err := conn.Readline(line, '\n', 4096); err != nil {
				errs <- err
				return err
			}
			if _, err := conn.Writeb(line); err != nil {
				errs <- err
				return err
			}
			return nil
		})
		return nil
	})

	time.Sleep(20 * time.Millisecond)

	srcSched.Spawn(func(cliTask *Task) error {
		cli, err := Socket4(srcSched, cliTask)
		if err != nil {
			errs <- err
			return err
		}
		addr, err := Addr4("127.0.0.1", port)
		if err != nil {
			errs <- err
			return err
		}
		if err := cli.Connect(addr); err != nil {
			errs <- err
			return err
		}
		if _, err := cli.Write([]byte("migrate\n")); err != nil {
			errs <- err
			return err
		}
		echoed, _ := buffer.New(nil)
		if err := cli.Readline(echoed, '\n', 4096); err != nil {
			errs <- err
			return err
		}
		s, _ := echoed.ToStr()
		result <- s
		return nil
	})

	select {
	case s := <-result:
		require.Equal(t, "migrate\n", s)
	case err := <-errs:
		t.Fatalf("socket error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for migrated echo round trip")
	}

	pool.Stop()
	require.Empty(t, pool.Join())
}

// TestTaskWaitAndRelease exercises task_wait/task_release from
// spec.md §5/§6: a task sleeping via Wait wakes on its own after the
// deadline, and a task released mid-sleep from another goroutine wakes
// immediately with ErrCancelled instead of waiting out the full deadline.
func TestTaskWaitAndRelease(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loopErrCh := make(chan error, 1)
	go func() { loopErrCh <- sched.Loop(ctx) }()

	waitErrs := make(chan error, 1)
	sched.Spawn(func(wt *Task) error {
		waitErrs <- wt.Wait(50)
		return nil
	})
	require.NoError(t, <-waitErrs)

	releaseErrs := make(chan error, 1)
	var released *Task
	releasedCh := make(chan struct{})
	sched.Spawn(func(rt *Task) error {
		released = rt
		close(releasedCh)
		releaseErrs <- rt.Wait(10_000)
		return nil
	})
	<-releasedCh
	time.Sleep(20 * time.Millisecond) // let the task actually reach Wait and suspend
	sched.Release(released)

	select {
	case err := <-releaseErrs:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for released task")
	}

	sched.Stop()
	require.NoError(t, <-loopErrCh)
}
