package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/authscope/internal/config"
)

type rootOptions struct {
	cfg *config.Config

	logLevel   string
	logFile    string
	bindAddr   string
	archiveDir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "authscope",
		Short: "Inspect Authorization headers and JWTs seen by a browser",
		Long: `authscope tracks every request that carries an Authorization header and
shows the token it used, decoding JWT header and payload without verifying
the signature.

Requests come from a Chromium tab over the DevTools protocol (watch) or from
a HAR export (serve-har, har). Configuration is read from the environment
and an optional .env file; flags override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.LogLevel = strings.ToLower(opts.logLevel)
			}
			if flags.Changed("log-file") {
				cfg.LogFile = opts.logFile
			}
			if flags.Changed("bind") {
				cfg.BindAddr = opts.bindAddr
			}
			if flags.Changed("archive-dir") {
				cfg.ArchiveDir = opts.archiveDir
			}
			opts.cfg = cfg

			// Commands that print results keep stdout for their output.
			console := io.Writer(os.Stdout)
			if cmd.Annotations["output"] == "stdout" {
				console = cmd.ErrOrStderr()
			}
			return setupLogger(cfg.LogLevel, cfg.LogFile, console)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error (env AUTHSCOPE_LOG_LEVEL)")
	pf.StringVar(&opts.logFile, "log-file", "logs/authscope.log", "Rotating log file (env AUTHSCOPE_LOG_FILE)")
	pf.StringVar(&opts.bindAddr, "bind", "127.0.0.1:8290", "API bind address (env AUTHSCOPE_BIND_ADDR)")
	pf.StringVar(&opts.archiveDir, "archive-dir", "./authscope_data", "JSONL archive directory, empty to disable (env AUTHSCOPE_ARCHIVE_DIR)")

	cmd.AddCommand(
		newWatchCmd(opts),
		newServeHARCmd(opts),
		newHARCmd(),
		newDecodeCmd(),
	)
	return cmd
}

func setupLogger(level, filename string, console io.Writer) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(console, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
