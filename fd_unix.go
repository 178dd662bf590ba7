//go:build linux

package rinoo

import "golang.org/x/sys/unix"

// Thin fd wrappers, grounded on the teacher's eventloop/fd_unix.go. Kept as
// a separate file/build tag so the non-Linux story (out of scope per
// spec.md's Non-goals, but left as an explicit seam) has somewhere to live
// without touching the rest of the package.

func closeFD(fd int) error {
	return unix.Close(fd)
}

func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
