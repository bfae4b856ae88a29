package handler

import (
	"net"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/yourusername/ember/internal/conntable"
	"github.com/yourusername/ember/internal/router"
)

// fakeEpoll stands in for *reactor.Epoll: it records calls instead of
// touching a real epoll instance, since these tests drive Handler methods
// directly rather than through a running reactor.
type fakeEpoll struct {
	mu      sync.Mutex
	added   []int
	modded  []int
	removed []int
}

func (f *fakeEpoll) Add(fd int, _ uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, fd)
	return nil
}

func (f *fakeEpoll) Mod(fd int, _ uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modded = append(f.modded, fd)
	return nil
}

func (f *fakeEpoll) Remove(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, fd)
	return nil
}

// socketPair returns two connected, non-blocking, bidirectional
// descriptors standing in for one accepted client connection: fd is
// handed to the Handler (as if accepted by the reactor), peer is kept by
// the test to act as the remote client.
func socketPair(t *testing.T) (fd, peer int) {
	t.Helper()
	pair, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	if err := syscall.SetNonblock(pair[0], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	t.Cleanup(func() {
		syscall.Close(pair[0])
		syscall.Close(pair[1])
	})
	return pair[0], pair[1]
}

func testLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

func staticFixture(t *testing.T) *router.Router {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/index.html", []byte("<h1>hi</h1>"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return router.New(dir, t.TempDir())
}

func writeAll(t *testing.T, fd int, data []byte) {
	t.Helper()
	for len(data) > 0 {
		n, err := syscall.Write(fd, data)
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		data = data[n:]
	}
}

func readAvailable(t *testing.T, fd int) []byte {
	t.Helper()
	if err := syscall.SetNonblock(fd, true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := syscall.Read(fd, buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil || n == 0 {
			break
		}
		if n < len(buf) {
			break
		}
	}
	return out
}

func TestServerRoundTripClosesAfterResponse(t *testing.T) {
	fd, peer := socketPair(t)
	table := conntable.New()
	ep := &fakeEpoll{}
	h := NewServer(table, ep, staticFixture(t), testLogger())

	h.Accept(fd)
	writeAll(t, peer, []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))

	h.HandleReadable(fd)
	h.HandleWritable(fd)

	resp := readAvailable(t, peer)
	if !strings.HasPrefix(string(resp), "HTTP/1.1 200 OK") {
		t.Fatalf("unexpected response: %q", resp)
	}
	if !strings.Contains(string(resp), "hi") {
		t.Fatalf("response missing body: %q", resp)
	}

	if _, ok := table.Get(fd); ok {
		t.Fatal("server role must close the connection after a non-keepalive response is flushed")
	}
}

func TestServerBadRequestClosesImmediately(t *testing.T) {
	fd, peer := socketPair(t)
	table := conntable.New()
	ep := &fakeEpoll{}
	h := NewServer(table, ep, staticFixture(t), testLogger())

	h.Accept(fd)
	writeAll(t, peer, []byte("NOT A REQUEST\r\n\r\n"))

	h.HandleReadable(fd)

	if _, ok := table.Get(fd); ok {
		t.Fatal("malformed request must close the connection without a response")
	}
}

func TestServerPipelinedRequestsBothAnswered(t *testing.T) {
	fd, peer := socketPair(t)
	table := conntable.New()
	ep := &fakeEpoll{}
	h := NewServer(table, ep, staticFixture(t), testLogger())

	h.Accept(fd)
	writeAll(t, peer, []byte(
		"GET / HTTP/1.1\r\nHost: x\r\n\r\n"+
			"GET /missing.html HTTP/1.1\r\nHost: x\r\n\r\n"))

	h.HandleReadable(fd)
	h.HandleWritable(fd)

	resp := string(readAvailable(t, peer))
	if strings.Count(resp, "HTTP/1.1") != 2 {
		t.Fatalf("expected two framed responses, got: %q", resp)
	}
	if !strings.Contains(resp, "200 OK") || !strings.Contains(resp, "404 Not Found") {
		t.Fatalf("expected one 200 and one 404, got: %q", resp)
	}
}

func TestProxyBridgesRawBytesBothWays(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverSeen := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		n, _ := conn.Read(buf)
		serverSeen <- append([]byte(nil), buf[:n]...)
		_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"))
	}()

	fd, peer := socketPair(t)
	table := conntable.New()
	ep := &fakeEpoll{}
	h := NewProxy(table, ep, "http://"+ln.Addr().String(), testLogger())

	h.Accept(fd)
	writeAll(t, peer, []byte("GET /widgets HTTP/1.1\r\nHost: x\r\n\r\n"))
	h.HandleReadable(fd)

	ctx, ok := table.Get(fd)
	if !ok {
		t.Fatal("expected client context present")
	}

	// HandleReadable attaches the upstream descriptor before returning;
	// wait (bounded) until it is set, then flush the buffered request
	// bytes to the upstream.
	deadline := time.Now().Add(2 * time.Second)
	for ctx.UpstreamFD < 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ctx.UpstreamFD < 0 {
		t.Fatal("upstream never resolved")
	}
	h.HandleWritable(ctx.UpstreamFD)

	select {
	case got := <-serverSeen:
		if !strings.HasPrefix(string(got), "GET /widgets HTTP/1.1") {
			t.Fatalf("upstream saw unexpected bytes: %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("upstream never received forwarded bytes")
	}

	// Let the upstream's response land, then bridge it back to the client.
	time.Sleep(50 * time.Millisecond)
	h.HandleReadable(ctx.UpstreamFD)
	h.HandleWritable(fd)

	resp := readAvailable(t, peer)
	if !strings.HasPrefix(string(resp), "HTTP/1.1 200 OK") {
		t.Fatalf("client did not receive bridged response: %q", resp)
	}
}

func TestHandleErrorHupRemovesFromTable(t *testing.T) {
	fd, _ := socketPair(t)
	table := conntable.New()
	ep := &fakeEpoll{}
	h := NewServer(table, ep, staticFixture(t), testLogger())

	h.Accept(fd)
	h.HandleErrorHup(fd)

	if _, ok := table.Get(fd); ok {
		t.Fatal("expected context removed after HandleErrorHup")
	}
}
