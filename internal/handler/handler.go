// Package handler implements the per-event connection state machine (C6):
// reading and writing connection buffers, driving the incremental parser,
// dispatching completed requests to the origin router, and bridging
// client and upstream bytes for the proxy role.
package handler

import (
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/ember/internal/buffer"
	"github.com/yourusername/ember/internal/conntable"
	"github.com/yourusername/ember/internal/httpmsg"
	"github.com/yourusername/ember/internal/logging"
	"github.com/yourusername/ember/internal/router"
	"github.com/yourusername/ember/internal/upstream"
)

// epollRearmer is the slice of *reactor.Epoll this package depends on.
// Declaring it locally (rather than importing the reactor package) keeps
// reactor -> handler a one-way dependency; *reactor.Epoll satisfies this
// interface structurally.
type epollRearmer interface {
	Add(fd int, events uint32) error
	Mod(fd int, events uint32) error
	Remove(fd int) error
}

// Event masks, duplicated from the reactor package's constants (same
// numeric values; kept here so this package has no import-cycle risk).
const (
	eventRead     = syscall.EPOLLIN
	eventWrite    = syscall.EPOLLOUT
	eventEdge     = syscall.EPOLLET
	readEdge      = eventRead | eventEdge
	readWriteEdge = eventRead | eventWrite | eventEdge
)

const readChunkSize = 64 * 1024

// Handler executes readable/writable/error events for one connection
// table, in one role (server or proxy).
type Handler struct {
	Table       *conntable.Table
	Epoll       epollRearmer
	Role        conntable.Role
	Router      *router.Router // server role only
	UpstreamURL string         // proxy role only
	Log         *logrus.Logger
}

// NewServer builds a server-role handler.
func NewServer(table *conntable.Table, epoll epollRearmer, rt *router.Router, log *logrus.Logger) *Handler {
	return &Handler{Table: table, Epoll: epoll, Role: conntable.RoleServer, Router: rt, Log: log}
}

// NewProxy builds a proxy-role handler forwarding every request parsed
// from a client connection to upstreamURL, and everything the upstream
// sends back to the client opaquely.
func NewProxy(table *conntable.Table, epoll epollRearmer, upstreamURL string, log *logrus.Logger) *Handler {
	return &Handler{Table: table, Epoll: epoll, Role: conntable.RoleProxy, UpstreamURL: upstreamURL, Log: log}
}

// Accept finishes onboarding a freshly accepted client descriptor: builds
// its context, inserts it into the table, and arms it for edge-triggered
// read readiness.
func (h *Handler) Accept(clientFD int) {
	var ctx *conntable.ConnectionContext
	if h.Role == conntable.RoleProxy {
		ctx = conntable.NewProxyContext(clientFD)
	} else {
		ctx = conntable.NewServerContext(clientFD)
	}
	h.Table.Insert(clientFD, ctx)
	if err := h.Epoll.Add(clientFD, readEdge); err != nil {
		h.Log.WithError(err).Warn("handler: failed to arm accepted socket")
		h.Table.Remove(clientFD)
	}
}

// HandleReadable drains fd and runs whatever client/upstream-side logic
// applies for the owning context's role.
func (h *Handler) HandleReadable(fd int) {
	ctx, ok := h.Table.Get(fd)
	if !ok {
		return
	}
	ctx.Mu.Lock()
	defer ctx.Mu.Unlock()

	data, peerClosed, err := drainRead(fd)
	if len(data) > 0 {
		h.appendInput(ctx, fd, data)
	}
	if peerClosed || (err != nil) {
		if ctx.IsUpstreamFD(fd) {
			// Hand whatever the upstream sent before closing to the client
			// before both sides are torn down.
			h.bridgeUpstreamToClient(ctx)
			_, _ = drainWrite(ctx.ClientFD, ctx.OutBuf)
		}
		h.closeLocked(ctx, fd)
		return
	}

	if ctx.Role == conntable.RoleServer {
		h.runServerParseLoop(ctx, fd)
		return
	}

	if ctx.IsUpstreamFD(fd) {
		h.bridgeUpstreamToClient(ctx)
	} else {
		h.runProxyParseLoop(ctx, fd)
	}
}

// HandleWritable drains the appropriate output buffer for fd.
func (h *Handler) HandleWritable(fd int) {
	ctx, ok := h.Table.Get(fd)
	if !ok {
		return
	}
	ctx.Mu.Lock()
	defer ctx.Mu.Unlock()

	out := h.outputBufferFor(ctx, fd)
	if out == nil {
		return
	}

	closed, err := drainWrite(fd, out)
	if err != nil {
		h.closeLocked(ctx, fd)
		return
	}
	if closed {
		return
	}
	if !out.IsEmpty() {
		return
	}

	// Buffer fully flushed: disarm write interest.
	_ = h.Epoll.Mod(fd, readEdge)

	if ctx.Role == conntable.RoleServer && !ctx.KeepAlive {
		h.closeLocked(ctx, fd)
	}
}

// HandleErrorHup tears down fd unconditionally.
func (h *Handler) HandleErrorHup(fd int) {
	ctx, ok := h.Table.Get(fd)
	if !ok {
		return
	}
	ctx.Mu.Lock()
	defer ctx.Mu.Unlock()
	h.closeLocked(ctx, fd)
}

func (h *Handler) appendInput(ctx *conntable.ConnectionContext, fd int, data []byte) {
	if ctx.IsUpstreamFD(fd) {
		ctx.UpstreamInBuf.Append(data)
	} else {
		ctx.InBuf.Append(data)
	}
}

func (h *Handler) outputBufferFor(ctx *conntable.ConnectionContext, fd int) *buffer.Buffer {
	if ctx.IsUpstreamFD(fd) {
		return ctx.UpstreamOutBuf
	}
	return ctx.OutBuf
}

// runServerParseLoop repeatedly parses complete requests out of ctx.InBuf
// and dispatches each through the router, supporting pipelining within a
// single read.
func (h *Handler) runServerParseLoop(ctx *conntable.ConnectionContext, fd int) {
	for {
		view := ctx.InBuf.View()
		req := httpmsg.NewRequest()
		out := httpmsg.ParseRequest(view, req)
		switch out.Status {
		case httpmsg.OutcomeNeedMore:
			return
		case httpmsg.OutcomeBad:
			if h.Log != nil {
				h.Log.WithError(out.Err).Debug("handler: parse error, closing connection")
			}
			h.closeLocked(ctx, fd)
			return
		case httpmsg.OutcomeComplete:
			ctx.InBuf.Consume(out.Consumed)
			ctx.KeepAlive = req.KeepAlive
			start := time.Now()
			resp := h.Router.Handle(req)
			ctx.OutBuf.Append(resp)
			ctx.KeepAlive = false // the router always emits Connection: close
			_ = h.Epoll.Mod(fd, readWriteEdge)
			if h.Log != nil {
				logging.LogAccess(h.Log, logging.AccessEntry{
					Method:     req.Method,
					Path:       req.Path,
					Status:     statusOf(resp),
					DurationMS: time.Since(start).Milliseconds(),
				})
			}
		}
	}
}

// runProxyParseLoop parses complete requests out of the client side and
// forwards their raw wire bytes to the upstream side verbatim, resolving
// the upstream connection on first use.
func (h *Handler) runProxyParseLoop(ctx *conntable.ConnectionContext, fd int) {
	for {
		view := ctx.InBuf.View()
		req := httpmsg.NewRequest()
		out := httpmsg.ParseRequest(view, req)
		switch out.Status {
		case httpmsg.OutcomeNeedMore:
			return
		case httpmsg.OutcomeBad:
			if h.Log != nil {
				h.Log.WithError(out.Err).Debug("handler: parse error, closing proxy connection")
			}
			h.closeLocked(ctx, fd)
			return
		case httpmsg.OutcomeComplete:
			raw := make([]byte, out.Consumed)
			copy(raw, view[:out.Consumed])
			ctx.InBuf.Consume(out.Consumed)

			if ctx.UpstreamFD < 0 {
				if !h.resolveUpstream(ctx) {
					h.closeLocked(ctx, fd)
					return
				}
			}
			ctx.UpstreamOutBuf.Append(raw)
			_ = h.Epoll.Mod(ctx.UpstreamFD, readWriteEdge)
		}
	}
}

func (h *Handler) resolveUpstream(ctx *conntable.ConnectionContext) bool {
	fd, err := upstream.Connect(h.UpstreamURL)
	if err != nil {
		if h.Log != nil {
			h.Log.WithError(err).Warn("handler: failed to connect upstream")
		}
		return false
	}
	ctx.AttachUpstream(fd)
	h.Table.Insert(fd, ctx)
	if err := h.Epoll.Add(fd, readWriteEdge); err != nil {
		if h.Log != nil {
			h.Log.WithError(err).Warn("handler: failed to arm upstream socket")
		}
		return false
	}
	return true
}

// bridgeUpstreamToClient moves whatever arrived on the upstream side
// verbatim into the client's output buffer (opaque byte bridge).
func (h *Handler) bridgeUpstreamToClient(ctx *conntable.ConnectionContext) {
	if ctx.UpstreamInBuf.IsEmpty() {
		return
	}
	ctx.OutBuf.Append(ctx.UpstreamInBuf.Drain())
	_ = h.Epoll.Mod(ctx.ClientFD, readWriteEdge)
}

// closeLocked tears down ctx. Caller must already hold ctx.Mu.
func (h *Handler) closeLocked(ctx *conntable.ConnectionContext, triggeringFD int) {
	_ = h.Epoll.Remove(ctx.ClientFD)
	h.Table.Remove(ctx.ClientFD)
	if ctx.Role == conntable.RoleProxy && ctx.UpstreamFD >= 0 {
		_ = h.Epoll.Remove(ctx.UpstreamFD)
		h.Table.Remove(ctx.UpstreamFD)
	}
}

// drainRead reads fd until EAGAIN (edge-triggered requires draining),
// peer-close (read returns 0), or a hard error.
func drainRead(fd int) (data []byte, peerClosed bool, err error) {
	buf := make([]byte, readChunkSize)
	for {
		n, rerr := syscall.Read(fd, buf)
		if n > 0 {
			data = append(data, buf[:n]...)
		}
		if rerr == nil && n == 0 {
			return data, true, nil
		}
		if rerr == syscall.EAGAIN {
			return data, false, nil
		}
		if rerr != nil {
			return data, false, rerr
		}
		if n < len(buf) {
			// Short read with no error: try again; EAGAIN will end the loop.
			continue
		}
	}
}

// drainWrite writes the buffer's unread region until EAGAIN or empty.
func drainWrite(fd int, out *buffer.Buffer) (closed bool, err error) {
	for !out.IsEmpty() {
		n, werr := syscall.Write(fd, out.View())
		if n > 0 {
			out.Consume(n)
		}
		if werr == syscall.EAGAIN {
			return false, nil
		}
		if werr != nil {
			return false, werr
		}
		if n == 0 {
			return false, nil
		}
	}
	return false, nil
}

// statusOf extracts the status code from a response framed by
// router.Router.Handle ("HTTP/1.1 NNN ..."), for access logging.
func statusOf(resp []byte) int {
	const prefix = len("HTTP/1.1 ")
	if len(resp) < prefix+3 {
		return 0
	}
	code := 0
	for i := 0; i < 3; i++ {
		d := resp[prefix+i]
		if d < '0' || d > '9' {
			return 0
		}
		code = code*10 + int(d-'0')
	}
	return code
}
