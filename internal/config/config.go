// Package config defines the shared command-line surface for both
// binaries, built on Cobra the same way docker-compose, Sentinel Gate,
// and every orbstack-swift-nio CLI (scon, vmgr, macvmgr) bind their
// flags through cobra/pflag instead of hand-parsing os.Args.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Role distinguishes which binary is running; not itself a flag.
type Role uint8

const (
	RoleServer Role = iota
	RoleProxy
)

// Config is the fully validated set of flags a run needs.
type Config struct {
	IP      string
	Port    uint16
	Threads int
	Proxy   string // proxy role only
	Role    Role
}

// flags holds the raw pflag-bound values before validation.
type flags struct {
	ip      string
	port    uint16
	threads int
	proxy   string
}

// BindServerFlags registers --ip, --port, --threads on cmd and returns a
// loader that validates them once Execute has parsed the command line.
func BindServerFlags(cmd *cobra.Command) func() (Config, error) {
	f := &flags{}
	cmd.Flags().StringVar(&f.ip, "ip", "", "listen IP address (required)")
	cmd.Flags().Uint16Var(&f.port, "port", 0, "listen TCP port (required)")
	cmd.Flags().IntVar(&f.threads, "threads", 0, "worker pool size, >=1; 1 selects the CPU count (required)")
	return func() (Config, error) {
		return validate(f, RoleServer)
	}
}

// BindProxyFlags registers --ip, --port, --threads, and --proxy.
func BindProxyFlags(cmd *cobra.Command) func() (Config, error) {
	f := &flags{}
	cmd.Flags().StringVar(&f.ip, "ip", "", "listen IP address (required)")
	cmd.Flags().Uint16Var(&f.port, "port", 0, "listen TCP port (required)")
	cmd.Flags().IntVar(&f.threads, "threads", 0, "worker pool size, >=1; 1 selects the CPU count (required)")
	cmd.Flags().StringVar(&f.proxy, "proxy", "", "upstream URL, e.g. http://127.0.0.1:8888 (required)")
	return func() (Config, error) {
		return validate(f, RoleProxy)
	}
}

func validate(f *flags, role Role) (Config, error) {
	if f.ip == "" {
		return Config{}, fmt.Errorf("missing required flag --ip")
	}
	if f.port == 0 {
		return Config{}, fmt.Errorf("missing required flag --port")
	}
	if f.threads < 1 {
		return Config{}, fmt.Errorf("--threads must be >= 1")
	}
	if role == RoleProxy && f.proxy == "" {
		return Config{}, fmt.Errorf("missing required flag --proxy")
	}
	return Config{
		IP:      f.ip,
		Port:    f.port,
		Threads: f.threads,
		Proxy:   f.proxy,
		Role:    role,
	}, nil
}
