// Command probe inspects the sigtrip upstream: which tools it exposes and
// how it answers a fixed set of diagnostic calls.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"sigtrip_wrapper/internal/adapters/observability"
	"sigtrip_wrapper/internal/adapters/sigtrip"
	"sigtrip_wrapper/internal/shared"
)

func main() {
	root := &cobra.Command{
		Use:          "probe",
		Short:        "Upstream diagnostics for the sigtrip hotel backend",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("url", "", "upstream MCP URL (default from config/env)")
	root.PersistentFlags().Bool("verbose", false, "log at debug level")

	root.AddCommand(toolsCmd())
	root.AddCommand(snapshotCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newUpstream builds a client from config, honouring --url. Logs go to
// stderr so stdout stays machine readable.
func newUpstream(cmd *cobra.Command) (*sigtrip.Client, error) {
	cfg := shared.Load()
	level := zerolog.InfoLevel
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = zerolog.DebugLevel
	}
	log.Logger = observability.NewLoggerTo(os.Stderr, cfg.AppEnv, cfg.AppVersion).Level(level)

	url := cfg.UpstreamURL
	if u, _ := cmd.Flags().GetString("url"); u != "" {
		url = u
	}
	return sigtrip.New(sigtrip.Options{
		URL:     url,
		APIKey:  cfg.UpstreamKey,
		Timeout: cfg.UpstreamTimeout(),
		Retries: cfg.RetryAttempts,
		RPS:     cfg.UpstreamRPS,
	})
}
