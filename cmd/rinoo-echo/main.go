// Command rinoo-echo is a minimal TCP line-echo server, demonstrating the
// scheduler/socket facade end to end: one listener task accepts
// connections and spawns one handler task per connection, each echoing
// newline-delimited lines until the peer closes.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/qmwd2006/rinoo"
	"github.com/qmwd2006/rinoo/buffer"
)

func main() {
	addrFlag := flag.String("addr", "127.0.0.1", "listen address")
	portFlag := flag.Int("port", 7007, "listen port")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched, err := rinoo.NewScheduler()
	if err != nil {
		log.Fatalf("rinoo-echo: new scheduler: %v", err)
	}
	defer sched.Destroy()

	sched.Spawn(func(t *rinoo.Task) error {
		srv, err := rinoo.Socket4(sched, t)
		if err != nil {
			return err
		}
		addr, err := rinoo.Addr4(*addrFlag, *portFlag)
		if err != nil {
			return err
		}
		if err := srv.Bind(addr); err != nil {
			return err
		}
		if err := srv.Listen(128); err != nil {
			return err
		}
		log.Printf("rinoo-echo: listening on %s:%d", *addrFlag, *portFlag)
		for {
			conn, err := srv.Accept()
			if err != nil {
				return err
			}
			sched.Spawn(func(ct *rinoo.Task) error {
				return serveConn(sched, ct, conn)
			})
		}
	})

	if err := sched.Loop(ctx); err != nil && err != context.Canceled {
		log.Fatalf("rinoo-echo: loop: %v", err)
	}
}

// maxLineSize bounds how much unterminated input serveConn will buffer
// looking for a newline before giving up on a misbehaving peer.
const maxLineSize = 64 * 1024

func serveConn(sched *rinoo.Scheduler, t *rinoo.Task, conn *rinoo.Socket) error {
	defer conn.Close()
	conn.Rebind(sched, t)
	for {
		line, err := buffer.New(nil)
		if err != nil {
			return err
		}
		if err := conn.Readline(line, '\n', maxLineSize); err != nil {
			return err
		}
		if _, err := conn.Writeb(line); err != nil {
			return err
		}
	}
}
