//go:build linux

package reactor

import (
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/ember/internal/netutil"
	"github.com/yourusername/ember/internal/workerpool"
)

const maxEvents = 1024

// EventHandler is the per-event logic the reactor dispatches to; satisfied
// structurally by *handler.Handler.
type EventHandler interface {
	Accept(clientFD int)
	HandleReadable(fd int)
	HandleWritable(fd int)
	HandleErrorHup(fd int)
}

// Reactor owns the listening socket and the epoll instance, and drives
// the single-threaded edge-triggered readiness loop. Concurrency is
// supplied entirely by the worker pool every event is dispatched to.
type Reactor struct {
	listenFD int
	epoll    *Epoll
	pool     *workerpool.Pool
	handler  EventHandler
	log      *logrus.Logger

	stop chan struct{}
}

// New binds a non-blocking listener on ip:port and wires it to pool and h.
func New(ip string, port uint16, pool *workerpool.Pool, h EventHandler, log *logrus.Logger) (*Reactor, error) {
	listenFD, err := netutil.Listen(ip, port)
	if err != nil {
		return nil, err
	}
	ep, err := NewEpoll()
	if err != nil {
		syscall.Close(listenFD)
		return nil, err
	}
	if err := ep.Add(listenFD, ReadEdge); err != nil {
		ep.Close()
		syscall.Close(listenFD)
		return nil, err
	}
	return &Reactor{
		listenFD: listenFD,
		epoll:    ep,
		pool:     pool,
		handler:  h,
		log:      log,
		stop:     make(chan struct{}),
	}, nil
}

// Run blocks, driving epoll_wait until Shutdown is called.
func (r *Reactor) Run() {
	events := make([]syscall.EpollEvent, maxEvents)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		n, err := r.epoll.Wait(events, 1000)
		if err != nil {
			if err == syscall.EBADF {
				return // epoll fd closed by Shutdown
			}
			r.log.WithError(err).Warn("reactor: epoll_wait failed")
			continue
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)
			mask := ev.Events

			if fd == r.listenFD {
				r.submitAccept()
				continue
			}
			r.submitIO(fd, mask)
		}
	}
}

func (r *Reactor) submitAccept() {
	_ = r.pool.Submit(func() {
		for {
			fd, ok, err := netutil.Accept(r.listenFD)
			if err != nil {
				r.log.WithError(err).Warn("reactor: accept failed")
				return
			}
			if !ok {
				return
			}
			r.handler.Accept(fd)
		}
	})
}

func (r *Reactor) submitIO(fd int, mask uint32) {
	_ = r.pool.Submit(func() {
		if mask&(syscall.EPOLLERR|syscall.EPOLLHUP) != 0 {
			r.handler.HandleErrorHup(fd)
			return
		}
		if mask&syscall.EPOLLIN != 0 {
			r.handler.HandleReadable(fd)
		}
		if mask&syscall.EPOLLOUT != 0 {
			r.handler.HandleWritable(fd)
		}
	})
}

// EpollHandle exposes the reactor's epoll instance so a handler can be
// constructed (or patched, see internal/app) with the same Add/Mod/Remove
// surface the reactor itself uses to arm the listener.
func (r *Reactor) EpollHandle() *Epoll {
	return r.epoll
}

// Shutdown stops the reactor loop and closes the epoll instance and the
// listening socket. It does not stop the worker pool or close connection
// descriptors; the caller stops its pool and Clears its ConnectionTable.
func (r *Reactor) Shutdown() {
	close(r.stop)
	r.epoll.Close()
	syscall.Close(r.listenFD)
}
