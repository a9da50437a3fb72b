package main

import (
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/authscope/internal/har"
)

func newServeHARCmd(root *rootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "serve-har <file.har>",
		Short: "Serve requests from a HAR file, re-reading it on an interval",
		Long: `Load every entry of a HAR export that carries an Authorization header and
serve them over the API. The file is re-read every --interval so a browser
that keeps overwriting the export shows up live; 0 loads it once.

Examples:
  authscope serve-har session.har
  authscope serve-har session.har --interval 2s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if cmd.Flags().Changed("interval") {
				cfg.RefreshInterval = interval
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt := newRuntime(cfg)
			defer rt.close()

			poller := har.NewPoller(args[0], cfg.RefreshInterval, rt.ingester)
			if _, err := poller.Refresh(); err != nil {
				return err
			}
			slog.Info("HAR loaded", "path", args[0], "tracked", rt.store.Size(), "refresh_interval", cfg.RefreshInterval)

			if cfg.RefreshInterval > 0 {
				go poller.Run(ctx)
			}
			return rt.serve(ctx)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Re-read interval, 0 to load once (env AUTHSCOPE_REFRESH_INTERVAL)")
	return cmd
}
