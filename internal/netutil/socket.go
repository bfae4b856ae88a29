// Package netutil wraps the raw, non-blocking socket syscalls the reactor
// and upstream connector need: listen, accept, and connect, all edge-
// triggered-friendly (SOCK_NONBLOCK end to end). Grounded on the same
// stdlib syscall package docker-compose's epoll wrapper uses instead of
// golang.org/x/sys/unix (see DESIGN.md).
package netutil

import (
	"context"
	"fmt"
	"net"
	"syscall"
)

// Listen creates a non-blocking IPv4 TCP listening socket bound to
// ip:port, with SO_REUSEADDR set and a backlog of syscall.SOMAXCONN.
func Listen(ip string, port uint16) (int, error) {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM|syscall.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("netutil: socket: %w", err)
	}
	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		syscall.Close(fd)
		return -1, fmt.Errorf("netutil: setsockopt SO_REUSEADDR: %w", err)
	}

	addr, err := toSockaddr(ip, port)
	if err != nil {
		syscall.Close(fd)
		return -1, err
	}
	if err := syscall.Bind(fd, addr); err != nil {
		syscall.Close(fd)
		return -1, fmt.Errorf("netutil: bind %s:%d: %w", ip, port, err)
	}
	if err := syscall.Listen(fd, syscall.SOMAXCONN); err != nil {
		syscall.Close(fd)
		return -1, fmt.Errorf("netutil: listen: %w", err)
	}
	return fd, nil
}

// Accept accepts one pending connection on listenFD and returns its
// non-blocking client fd. When the kernel reports EAGAIN it returns
// ok == false, err == nil ("drained"), which ends the edge-triggered
// accept-task loop the reactor runs around this call.
func Accept(listenFD int) (fd int, ok bool, err error) {
	nfd, _, acceptErr := syscall.Accept4(listenFD, syscall.SOCK_NONBLOCK)
	if acceptErr != nil {
		if acceptErr == syscall.EAGAIN {
			return -1, false, nil
		}
		return -1, false, acceptErr
	}
	ApplyClientTuning(nfd)
	return nfd, true, nil
}

// ApplyClientTuning applies the low-latency socket options a newly
// accepted or newly connected TCP socket should carry: TCP_NODELAY to
// disable Nagle's algorithm, matching shockwave/socket's DefaultConfig
// intent for HTTP workloads. Failures are non-fatal; HTTP correctness
// does not depend on this option being honoured by the kernel.
func ApplyClientTuning(fd int) {
	_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1)
}

// ConnectNonblocking creates a non-blocking TCP socket and begins
// connecting it to host:port. EINPROGRESS is not an error: completion is
// observed by the reactor as the first writable-readiness event on fd.
func ConnectNonblocking(host string, port int) (int, error) {
	ip, err := resolveIPv4(host)
	if err != nil {
		return -1, err
	}

	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM|syscall.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("netutil: socket: %w", err)
	}

	var addr syscall.SockaddrInet4
	addr.Port = port
	copy(addr.Addr[:], ip.To4())

	if err := syscall.Connect(fd, &addr); err != nil && err != syscall.EINPROGRESS {
		syscall.Close(fd)
		return -1, fmt.Errorf("netutil: connect %s:%d: %w", host, port, err)
	}
	ApplyClientTuning(fd)
	return fd, nil
}

func resolveIPv4(host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	ips, err := net.DefaultResolver.LookupIP(context.Background(), "ip4", host)
	if err != nil || len(ips) == 0 {
		return nil, fmt.Errorf("netutil: resolve %s: %w", host, err)
	}
	return ips[0], nil
}

func toSockaddr(ip string, port uint16) (*syscall.SockaddrInet4, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("netutil: invalid IP %q", ip)
	}
	v4 := parsed.To4()
	if v4 == nil {
		return nil, fmt.Errorf("netutil: only IPv4 is supported, got %q", ip)
	}
	addr := &syscall.SockaddrInet4{Port: int(port)}
	copy(addr.Addr[:], v4)
	return addr, nil
}
