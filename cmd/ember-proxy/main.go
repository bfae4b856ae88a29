// Command ember-proxy is the forwarding reverse proxy sharing the server's
// connection-lifecycle core.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/ember/internal/app"
	"github.com/yourusername/ember/internal/config"
	"github.com/yourusername/ember/internal/logging"
)

func main() {
	cmd := &cobra.Command{
		Use:           "ember-proxy",
		Short:         "Edge-triggered HTTP/1.1 forwarding reverse proxy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	load := config.BindProxyFlags(cmd)

	cmd.RunE = func(_ *cobra.Command, _ []string) error {
		cfg, err := load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "usage: ember-proxy --ip <a.b.c.d> --port <u16> --threads <n> --proxy <url>\n%v\n", err)
			os.Exit(1)
		}
		log := logging.New("info")
		if err := app.Run(cfg, log); err != nil {
			log.WithError(err).Error("ember-proxy: fatal startup error")
			os.Exit(1)
		}
		return nil
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
