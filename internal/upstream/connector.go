// Package upstream resolves the proxy's upstream target and opens a
// non-blocking TCP connection to it.
package upstream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/ember/internal/netutil"
)

// Endpoint is a resolved host:port pair.
type Endpoint struct {
	Host string
	Port int
}

// ParseURL resolves "scheme://host[:port][/path]" into an Endpoint,
// defaulting to port 80 when scheme is "http" and no port is given. Only
// the host[:port] authority is inspected; any path/query is ignored,
// matching the original source's UpstreamManager::parse_url.
func ParseURL(raw string) (Endpoint, error) {
	rest := raw
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[:idx]
	}
	if rest == "" {
		return Endpoint{}, fmt.Errorf("upstream: empty host in %q", raw)
	}

	host := rest
	port := 80
	if idx := strings.LastIndexByte(rest, ':'); idx >= 0 {
		host = rest[:idx]
		p, err := strconv.Atoi(rest[idx+1:])
		if err != nil {
			return Endpoint{}, fmt.Errorf("upstream: invalid port in %q: %w", raw, err)
		}
		port = p
	}
	return Endpoint{Host: host, Port: port}, nil
}

// Connect resolves raw and returns a non-blocking socket already
// initiating a connect to it. The connect may still be EINPROGRESS; its
// completion is observed as the first writable-readiness event by the
// reactor (see internal/handler).
func Connect(raw string) (int, error) {
	ep, err := ParseURL(raw)
	if err != nil {
		return -1, err
	}
	return netutil.ConnectNonblocking(ep.Host, ep.Port)
}
