// Command rinoo-watch prints CREATE/DELETE events under a directory,
// demonstrating the inotify Watcher end to end.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/qmwd2006/rinoo"
)

func main() {
	path := flag.String("path", ".", "directory to watch")
	recursive := flag.Bool("recursive", false, "watch subdirectories too")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched, err := rinoo.NewScheduler()
	if err != nil {
		log.Fatalf("rinoo-watch: new scheduler: %v", err)
	}
	defer sched.Destroy()

	sched.Spawn(func(t *rinoo.Task) error {
		w, err := rinoo.NewWatcher(sched, t)
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.AddWatch(*path, unix.IN_CREATE|unix.IN_DELETE, *recursive); err != nil {
			return err
		}
		for {
			ev, err := w.Event()
			if err != nil {
				return err
			}
			switch {
			case ev.Mask&unix.IN_CREATE != 0:
				log.Printf("CREATE %s", ev.Path)
			case ev.Mask&unix.IN_DELETE != 0:
				log.Printf("DELETE %s", ev.Path)
			}
		}
	})

	if err := sched.Loop(ctx); err != nil && err != context.Canceled {
		log.Fatalf("rinoo-watch: loop: %v", err)
	}
}
