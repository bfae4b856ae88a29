//go:build linux

// Package reactor implements the edge-triggered readiness loop: it owns
// the listening socket and the epoll instance, and hands every event off
// to the worker pool as a task. Grounded on docker-compose's
// archutils/epoll.go, which wraps the same three stdlib syscalls rather
// than importing golang.org/x/sys/unix.
package reactor

import "syscall"

// Event masks used when (re-)arming interest for a descriptor.
const (
	EventRead      = syscall.EPOLLIN
	EventWrite     = syscall.EPOLLOUT
	EventEdgeTrig  = syscall.EPOLLET
	EventErrHup    = syscall.EPOLLERR | syscall.EPOLLHUP
	ReadEdge       = EventRead | EventEdgeTrig
	ReadWriteEdge  = EventRead | EventWrite | EventEdgeTrig
)

// Epoll is a thin wrapper around a single epoll file descriptor, safe for
// concurrent Add/Mod/Remove calls from workers while the reactor
// goroutine concurrently blocks in Wait (the kernel serialises epoll
// instance mutation).
type Epoll struct {
	fd int
}

// NewEpoll creates a fresh epoll instance.
func NewEpoll() (*Epoll, error) {
	fd, err := syscall.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Epoll{fd: fd}, nil
}

// Add registers fd for the given edge-triggered event mask.
func (e *Epoll) Add(fd int, events uint32) error {
	return syscall.EpollCtl(e.fd, syscall.EPOLL_CTL_ADD, fd, &syscall.EpollEvent{
		Events: events,
		Fd:     int32(fd),
	})
}

// Mod updates the interest set for an already-registered fd.
func (e *Epoll) Mod(fd int, events uint32) error {
	return syscall.EpollCtl(e.fd, syscall.EPOLL_CTL_MOD, fd, &syscall.EpollEvent{
		Events: events,
		Fd:     int32(fd),
	})
}

// Remove deregisters fd. It is not an error to remove an fd that was
// never added or was already removed.
func (e *Epoll) Remove(fd int) error {
	err := syscall.EpollCtl(e.fd, syscall.EPOLL_CTL_DEL, fd, nil)
	if err == syscall.ENOENT || err == syscall.EBADF {
		return nil
	}
	return err
}

// Wait blocks until at least one event is ready (or timeoutMS elapses; -1
// blocks forever), retrying internally on EINTR.
func (e *Epoll) Wait(events []syscall.EpollEvent, timeoutMS int) (int, error) {
	for {
		n, err := syscall.EpollWait(e.fd, events, timeoutMS)
		if err == syscall.EINTR {
			continue
		}
		return n, err
	}
}

// Close releases the epoll file descriptor.
func (e *Epoll) Close() error {
	return syscall.Close(e.fd)
}
