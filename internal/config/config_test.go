package config

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestServerFlagsMissingIP(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	load := BindServerFlags(cmd)
	cmd.SetArgs([]string{"--port", "8080", "--threads", "4"})
	if err := cmd.ParseFlags([]string{"--port", "8080", "--threads", "4"}); err != nil {
		t.Fatal(err)
	}
	if _, err := load(); err == nil {
		t.Fatal("expected error for missing --ip")
	}
}

func TestServerFlagsValid(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	load := BindServerFlags(cmd)
	args := []string{"--ip", "127.0.0.1", "--port", "8080", "--threads", "4"}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatal(err)
	}
	cfg, err := load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IP != "127.0.0.1" || cfg.Port != 8080 || cfg.Threads != 4 || cfg.Role != RoleServer {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestProxyFlagsRequiresProxyURL(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	load := BindProxyFlags(cmd)
	args := []string{"--ip", "0.0.0.0", "--port", "9090", "--threads", "2"}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatal(err)
	}
	if _, err := load(); err == nil {
		t.Fatal("expected error for missing --proxy")
	}
}

func TestProxyFlagsValid(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	load := BindProxyFlags(cmd)
	args := []string{"--ip", "0.0.0.0", "--port", "9090", "--threads", "2", "--proxy", "http://127.0.0.1:8888"}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatal(err)
	}
	cfg, err := load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Proxy != "http://127.0.0.1:8888" || cfg.Role != RoleProxy {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestThreadsMustBePositive(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	load := BindServerFlags(cmd)
	args := []string{"--ip", "127.0.0.1", "--port", "80", "--threads", "0"}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatal(err)
	}
	if _, err := load(); err == nil {
		t.Fatal("expected error for --threads 0")
	}
}
