package conntable

import (
	"os"
	"testing"
)

// pipeFDs returns two distinct, real, closeable file descriptors so that
// ctx.close()'s syscall.Close calls are exercised against something valid
// rather than fabricated numbers.
func pipeFDs(t *testing.T) (a, b int) {
	t.Helper()
	r1, w1, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() { r1.Close(); w1.Close() })
	return int(r1.Fd()), int(w1.Fd())
}

func TestServerContextRemovedOnce(t *testing.T) {
	fd, _ := pipeFDs(t)
	tbl := New()
	ctx := NewServerContext(fd)
	tbl.Insert(fd, ctx)

	if _, ok := tbl.Get(fd); !ok {
		t.Fatal("expected entry after Insert")
	}
	tbl.Remove(fd)
	if _, ok := tbl.Get(fd); ok {
		t.Fatal("expected no entry after Remove")
	}
	if !ctx.released {
		t.Fatal("expected context to be released")
	}

	// Removing again must not panic or double-close.
	tbl.Remove(fd)
}

func TestProxyContextDualKeyRemovedExactlyOnce(t *testing.T) {
	clientFD, upstreamFD := pipeFDs(t)
	tbl := New()
	ctx := NewProxyContext(clientFD)
	tbl.Insert(clientFD, ctx)

	ctx.AttachUpstream(upstreamFD)
	tbl.Insert(upstreamFD, ctx)

	tbl.Remove(clientFD)
	if ctx.released {
		t.Fatal("context must not be released while upstream key is still present")
	}
	if _, ok := tbl.Get(upstreamFD); !ok {
		t.Fatal("upstream entry should still be present")
	}

	tbl.Remove(upstreamFD)
	if !ctx.released {
		t.Fatal("context should be released once both keys are removed")
	}

	if _, ok := tbl.Get(clientFD); ok {
		t.Fatal("client key should be gone")
	}
	if _, ok := tbl.Get(upstreamFD); ok {
		t.Fatal("upstream key should be gone")
	}
}

func TestClearReleasesEverything(t *testing.T) {
	fd1, fd2 := pipeFDs(t)
	tbl := New()
	tbl.Insert(fd1, NewServerContext(fd1))
	tbl.Insert(fd2, NewServerContext(fd2))

	tbl.Clear()
	if tbl.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after Clear", tbl.Len())
	}
}

func TestRemoveUnknownFDIsNoop(t *testing.T) {
	tbl := New()
	tbl.Remove(999999)
	if tbl.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", tbl.Len())
	}
}
