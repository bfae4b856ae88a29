// Package buffer implements a growable FIFO byte buffer for connection I/O.
package buffer

import (
	"github.com/valyala/bytebufferpool"
)

// minGrow is the smallest consumed prefix that compactIfWorthwhile will
// reclaim by shifting the unread region back to index 0.
const minGrow = 4096

// Buffer is an ordered byte sequence with amortized O(1) append and
// prefix-consume. It is never safe for concurrent use; a Buffer is always
// owned by exactly one connection context.
type Buffer struct {
	bb   *bytebufferpool.ByteBuffer
	head int // index of the first unread byte in bb.B
}

// New returns an empty Buffer backed by a pooled byte slice.
func New() *Buffer {
	return &Buffer{bb: bytebufferpool.Get()}
}

// Release returns the backing array to the pool. The Buffer must not be
// used again afterward.
func (b *Buffer) Release() {
	if b.bb != nil {
		bytebufferpool.Put(b.bb)
		b.bb = nil
	}
}

// Append copies p to the tail of the buffer.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.compactIfWorthwhile(len(p))
	b.bb.B = append(b.bb.B, p...)
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.bb.B) - b.head
}

// IsEmpty reports whether there are no unread bytes.
func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

// View returns a borrow of the unread region. The returned slice is valid
// only until the next call to Append, Consume, or Drain.
func (b *Buffer) View() []byte {
	return b.bb.B[b.head:]
}

// Find returns the index, relative to View(), of the first occurrence of
// delim in the unread region, or (-1, false) if it does not occur.
func (b *Buffer) Find(delim []byte) (int, bool) {
	idx := indexOf(b.View(), delim)
	if idx < 0 {
		return -1, false
	}
	return idx, true
}

// Consume drops the first n bytes of the unread region. It panics if
// n > Len(), which is always a programming error.
func (b *Buffer) Consume(n int) {
	if n < 0 || n > b.Len() {
		panic("buffer: consume exceeds available length")
	}
	b.head += n
	if b.head == len(b.bb.B) {
		// Fully drained: reset indices so the backing array can be reused
		// from the start without growing.
		b.bb.B = b.bb.B[:0]
		b.head = 0
	}
}

// Drain returns and removes all unread bytes. The returned slice is a copy;
// the Buffer is empty after this call.
func (b *Buffer) Drain() []byte {
	out := make([]byte, b.Len())
	copy(out, b.View())
	b.bb.B = b.bb.B[:0]
	b.head = 0
	return out
}

// compactIfWorthwhile shifts the unread region back to index 0 when the
// already-consumed prefix is large enough that reclaiming it avoids a
// reallocation for the upcoming append of addLen bytes.
func (b *Buffer) compactIfWorthwhile(addLen int) {
	if b.head == 0 {
		return
	}
	free := cap(b.bb.B) - len(b.bb.B) + b.head
	if free < addLen || b.head < minGrow {
		return
	}
	n := copy(b.bb.B, b.bb.B[b.head:])
	b.bb.B = b.bb.B[:n]
	b.head = 0
}

func indexOf(haystack, needle []byte) int {
	if len(needle) == 0 {
		return 0
	}
	if len(needle) > len(haystack) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := 0; j < len(needle); j++ {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
