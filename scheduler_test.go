package rinoo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qmwd2006/rinoo/buffer"
)

// TestTCPEchoRoundTrip exercises the end-to-end TCP echo scenario from
// spec.md §8: a listener task accepts one connection and echoes a single
// newline-delimited line back to a client task, both driven by the same
// Scheduler.
func TestTCPEchoRoundTrip(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopErrCh := make(chan error, 1)
	go func() { loopErrCh <- sched.Loop(ctx) }()

	const port = 18873
	result := make(chan string, 1)
	errs := make(chan error, 2)

	sched.Spawn(func(srvTask *Task) error {
		srv, err := Socket4(sched, srvTask)
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

	time.Sleep(20 * time.Millisecond) // let the listener bind before the client connects

	sched.Spawn(func(cliTask *Task) error {
		cli, err := Socket4(sched, cliTask)
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
		if _, err := cli.Write([]byte("ping\n")); err != nil {
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
		require.Equal(t, "ping\n", s)
	case err := <-errs:
		t.Fatalf("socket error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo round trip")
	}

	sched.Stop()
	require.NoError(t, <-loopErrCh)
}

// TestAcceptRebindToHandlerTask exercises the common server pattern where
// the connection accepted by a listener task is driven by a separately
// spawned handler task: without Rebind, the handler's suspending calls
// would incorrectly wait on the listener's task instead of its own.
func TestAcceptRebindToHandlerTask(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopErrCh := make(chan error, 1)
	go func() { loopErrCh <- sched.Loop(ctx) }()

	const port = 18874
	result := make(chan string, 1)
	errs := make(chan error, 3)

	sched.Spawn(func(srvTask *Task) error {
		srv, err := Socket4(sched, srvTask)
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
		sched.Spawn(func(handlerTask *Task) error {
			conn.Rebind(sched, handlerTask)
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

	sched.Spawn(func(cliTask *Task) error {
		cli, err := Socket4(sched, cliTask)
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
		if _, err := cli.Write([]byte("pong\n")); err != nil {
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
		require.Equal(t, "pong\n", s)
	case err := <-errs:
		t.Fatalf("socket error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rebind round trip")
	}

	sched.Stop()
	require.NoError(t, <-loopErrCh)
}

func TestSpawnPoolStartStop(t *testing.T) {
	pool, err := NewPool(3)
	require.NoError(t, err)
	require.Equal(t, 3, pool.Count())

	ctx := context.Background()
	pool.Start(ctx)

	done := make(chan struct{}, pool.Count())
	for i := 0; i < pool.Count(); i++ {
		pool.Get(i).Spawn(func(tk *Task) error {
			done <- struct{}{}
			return nil
		})
	}
	for i := 0; i < pool.Count(); i++ {
		<-done
	}

	pool.Stop()
	errsOut := pool.Join()
	require.Empty(t, errsOut)
	require.NoError(t, pool.Destroy())
}
