// Package app wires the reactor, worker pool, connection table, and
// role-specific handler into a running server or proxy, and owns the
// process's signal-triggered shutdown path. Both cmd/ember-server and
// cmd/ember-proxy call Run from main after parsing flags.
package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/ember/internal/config"
	"github.com/yourusername/ember/internal/conntable"
	"github.com/yourusername/ember/internal/handler"
	"github.com/yourusername/ember/internal/reactor"
	"github.com/yourusername/ember/internal/router"
	"github.com/yourusername/ember/internal/workerpool"
)

// Run constructs the core for cfg.Role and blocks until SIGINT/SIGTERM,
// then shuts down cleanly. It returns a non-nil error only for startup
// failures (§6: these map to exit code 1 at the call site).
func Run(cfg config.Config, log *logrus.Logger) error {
	table := conntable.New()
	pool := workerpool.New(cfg.Threads)

	var h *handler.Handler
	switch cfg.Role {
	case config.RoleServer:
		rt := router.New("static", "data")
		h = handler.NewServer(table, nil, rt, log)
	case config.RoleProxy:
		h = handler.NewProxy(table, nil, cfg.Proxy, log)
	default:
		return fmt.Errorf("app: unknown role %v", cfg.Role)
	}

	react, err := reactor.New(cfg.IP, cfg.Port, pool, h, log)
	if err != nil {
		return fmt.Errorf("app: reactor startup failed: %w", err)
	}
	h.Epoll = react.EpollHandle()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		react.Run()
		close(done)
	}()

	<-sig
	log.Info("app: shutting down")
	react.Shutdown()
	<-done
	pool.Stop()
	table.Clear()
	log.Info("app: shutdown complete")
	return nil
}
