// Package conntable owns the lifetime of every active connection context,
// keyed by file descriptor, and is the sole place a ConnectionContext is
// destroyed.
package conntable

import (
	"sync"
	"syscall"

	"github.com/yourusername/ember/internal/buffer"
	"github.com/yourusername/ember/internal/httpmsg"
)

// Role distinguishes the origin-server connection lifecycle from the
// proxy's two-sided one.
type Role uint8

const (
	RoleServer Role = iota
	RoleProxy
)

// ConnectionContext is the unit of ownership for one active connection. A
// proxy context is reachable under two keys in the owning Table
// (ClientFD and UpstreamFD); ClientFD is always valid, UpstreamFD is -1
// until the first request has selected an upstream.
type ConnectionContext struct {
	Role Role

	ClientFD   int
	UpstreamFD int // -1 until resolved (proxy role only)

	InBuf  *buffer.Buffer
	OutBuf *buffer.Buffer

	UpstreamInBuf  *buffer.Buffer // proxy role only
	UpstreamOutBuf *buffer.Buffer // proxy role only

	Pipeline []*httpmsg.Request

	KeepAlive bool

	// Mu serialises every task that touches this context, whether it
	// arrived via the client side or the upstream side, per the
	// per-context exclusion contract in the concurrency model.
	Mu sync.Mutex

	released bool // guarded by the owning Table's mutex, not Mu
}

// NewServerContext builds a context for a freshly accepted origin-server
// connection.
func NewServerContext(clientFD int) *ConnectionContext {
	return &ConnectionContext{
		Role:       RoleServer,
		ClientFD:   clientFD,
		UpstreamFD: -1,
		InBuf:      buffer.New(),
		OutBuf:     buffer.New(),
	}
}

// NewProxyContext builds a context for a freshly accepted proxy-role
// connection. The upstream side is not yet resolved.
func NewProxyContext(clientFD int) *ConnectionContext {
	return &ConnectionContext{
		Role:           RoleProxy,
		ClientFD:       clientFD,
		UpstreamFD:     -1,
		InBuf:          buffer.New(),
		OutBuf:         buffer.New(),
		UpstreamInBuf:  buffer.New(),
		UpstreamOutBuf: buffer.New(),
	}
}

// AttachUpstream records a resolved upstream descriptor on a proxy
// context. Callers must hold Mu.
func (c *ConnectionContext) AttachUpstream(fd int) {
	c.UpstreamFD = fd
}

// IsUpstreamFD reports whether fd is this context's upstream side.
func (c *ConnectionContext) IsUpstreamFD(fd int) bool {
	return c.Role == RoleProxy && c.UpstreamFD >= 0 && fd == c.UpstreamFD
}

// close releases both descriptors and every buffer this context owns. It
// must only ever run once per context; the Table enforces that via
// released.
func (c *ConnectionContext) close() {
	syscall.Close(c.ClientFD)
	if c.Role == RoleProxy && c.UpstreamFD >= 0 {
		syscall.Close(c.UpstreamFD)
	}
	c.InBuf.Release()
	c.OutBuf.Release()
	if c.UpstreamInBuf != nil {
		c.UpstreamInBuf.Release()
	}
	if c.UpstreamOutBuf != nil {
		c.UpstreamOutBuf.Release()
	}
}
