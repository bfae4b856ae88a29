package workerpool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := New(4)
	defer p.Stop()

	var n int64
	const count = 200
	for i := 0; i < count; i++ {
		if err := p.Submit(func() { atomic.AddInt64(&n, 1) }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&n) != count && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := atomic.LoadInt64(&n); got != count {
		t.Fatalf("ran %d tasks, want %d", got, count)
	}
}

func TestSubmitAfterStopFails(t *testing.T) {
	p := New(2)
	p.Stop()
	if err := p.Submit(func() {}); err != ErrStopped {
		t.Fatalf("Submit after Stop = %v, want ErrStopped", err)
	}
}

func TestStopDrainsQueueBeforeExit(t *testing.T) {
	p := New(1)
	var n int64
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		p.Submit(func() { atomic.AddInt64(&n, 1) })
	}
	go func() {
		p.Stop()
		close(done)
	}()
	<-done
	if got := atomic.LoadInt64(&n); got != 10 {
		t.Fatalf("ran %d tasks before Stop returned, want 10", got)
	}
}

func TestDefaultSizeUsesNumCPU(t *testing.T) {
	p := New(0)
	defer p.Stop()
	// Just exercise the zero-value path; correctness is that New doesn't
	// deadlock or panic with n < 1.
	done := make(chan struct{})
	p.Submit(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}
