package conntable

import "sync"

// Table is a thread-safe mapping from file descriptor to ConnectionContext.
// An entry exists iff the corresponding descriptor is registered with the
// reactor's epoll instance and its context has not been destroyed. A proxy
// context occupies two entries (ClientFD and UpstreamFD) pointing at the
// same *ConnectionContext; both must be removed before the context is
// released, and it is released exactly once.
type Table struct {
	mu      sync.Mutex
	entries map[int]*ConnectionContext
}

// New returns an empty Table.
func New() *Table {
	return &Table{entries: make(map[int]*ConnectionContext)}
}

// Insert registers ctx under fd. Call once per key (twice for a proxy
// context, once for ClientFD and once after UpstreamFD is resolved).
func (t *Table) Insert(fd int, ctx *ConnectionContext) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[fd] = ctx
}

// Get looks up the context registered under fd.
func (t *Table) Get(fd int) (*ConnectionContext, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx, ok := t.entries[fd]
	return ctx, ok
}

// Remove deletes the entry for fd. When this was the last live key
// referring to its context (i.e. for a server-role context, or for a
// proxy-role context once both ClientFD and UpstreamFD entries are gone),
// the context is closed exactly once. Remove is a no-op if fd was not
// present.
func (t *Table) Remove(fd int) {
	t.mu.Lock()
	ctx, ok := t.entries[fd]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.entries, fd)

	stillReferenced := false
	if ctx.Role == RoleProxy {
		if fd == ctx.ClientFD && ctx.UpstreamFD >= 0 {
			_, stillReferenced = t.entries[ctx.UpstreamFD]
		} else if fd == ctx.UpstreamFD {
			_, stillReferenced = t.entries[ctx.ClientFD]
		}
	}

	var shouldClose bool
	if !stillReferenced && !ctx.released {
		ctx.released = true
		shouldClose = true
	}
	t.mu.Unlock()

	if shouldClose {
		ctx.close()
	}
}

// Clear removes and closes every context in the table, used on shutdown.
func (t *Table) Clear() {
	t.mu.Lock()
	fds := make([]int, 0, len(t.entries))
	for fd := range t.entries {
		fds = append(fds, fd)
	}
	t.mu.Unlock()

	for _, fd := range fds {
		t.Remove(fd)
	}
}

// Len reports the current number of registered keys (not distinct
// connections — a proxy connection with a resolved upstream counts as 2).
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
