package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/authscope/internal/browser"
	"github.com/dgnsrekt/authscope/internal/capture"
	"github.com/dgnsrekt/authscope/internal/cdp"
	"github.com/dgnsrekt/authscope/internal/inspect"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		cdpAddress string
		cdpPort    int
		tabFilter  string
		reload     bool
		launch     bool
		startURL   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Capture Authorization headers from live Chromium tabs",
		Long: `Attach to every Chromium tab whose URL matches the tab filter and track
each request that carries an Authorization header, including WebSocket
handshakes. Chromium must run with --remote-debugging-port.

Examples:
  authscope watch
  authscope watch --tab-filter app.example.com --reload
  authscope watch --cdp-port 9223 --bind 127.0.0.1:9000
  authscope watch --launch --start-url https://app.example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			flags := cmd.Flags()
			if flags.Changed("cdp-address") {
				cfg.CDPAddress = cdpAddress
			}
			if flags.Changed("cdp-port") {
				cfg.CDPPort = cdpPort
			}
			if flags.Changed("tab-filter") {
				cfg.TabURLFilter = tabFilter
			}
			if flags.Changed("reload") {
				cfg.ReloadOnAttach = reload
			}
			if flags.Changed("launch") {
				cfg.LaunchBrowser = launch
			}
			if flags.Changed("start-url") {
				cfg.BrowserStartURL = startURL
			}

			slog.Info("Configuration loaded",
				"cdp_url", cfg.GetCDPURL(),
				"tab_url_filter", cfg.TabURLFilter,
				"reload_on_attach", cfg.ReloadOnAttach,
				"bind_addr", cfg.BindAddr,
				"archive_dir", cfg.ArchiveDir,
				"log_level", cfg.LogLevel,
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.LaunchBrowser {
				launcher := browser.NewLauncher(browser.Options{
					CDPAddress: cfg.CDPAddress,
					CDPPort:    cfg.CDPPort,
					StartURL:   cfg.BrowserStartURL,
					ProfileDir: cfg.BrowserProfileDir,
				})
				if _, err := launcher.Launch(ctx); err != nil {
					return fmt.Errorf("failed to launch browser: %w", err)
				}
				defer launcher.Stop()
			}

			rt := newRuntime(cfg)
			defer rt.close()

			httpCapture := capture.NewHTTPCapture(rt.ingester)
			defer httpCapture.Close()
			wsCapture := capture.NewHandshakeCapture(rt.ingester)
			tabRegistry := cdp.NewTabRegistry()

			cdpClient := cdp.NewClient(cfg, httpCapture, wsCapture, tabRegistry)
			if err := cdpClient.Connect(ctx); err != nil {
				slog.Info("Make sure Chromium is running with remote debugging enabled", "cdp_url", cfg.GetCDPURL())
				return fmt.Errorf("failed to connect to browser: %w", err)
			}
			defer func() {
				if err := cdpClient.Close(); err != nil {
					slog.Warn("CDP close failed", "error", err)
				}
			}()

			slog.Info("Watching tabs", "tabs", cdpClient.TabCount())
			return rt.serve(ctx, inspect.WithTabs(cdpClient.Tabs))
		},
	}

	f := cmd.Flags()
	f.StringVar(&cdpAddress, "cdp-address", "127.0.0.1", "Chromium DevTools address (env CHROMIUM_CDP_ADDRESS)")
	f.IntVar(&cdpPort, "cdp-port", 9222, "Chromium DevTools port (env CHROMIUM_CDP_PORT)")
	f.StringVar(&tabFilter, "tab-filter", "", "Only attach to tabs whose URL contains this text (env AUTHSCOPE_TAB_URL_FILTER)")
	f.BoolVar(&reload, "reload", false, "Reload each tab after attaching so early requests are seen (env AUTHSCOPE_RELOAD_ON_ATTACH)")
	f.BoolVar(&launch, "launch", false, "Start Chromium with remote debugging unless one already listens (env AUTHSCOPE_LAUNCH_BROWSER)")
	f.StringVar(&startURL, "start-url", "about:blank", "First page of a launched browser (env AUTHSCOPE_BROWSER_START_URL)")
	return cmd
}
