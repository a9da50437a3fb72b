package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/authscope/internal/api"
	"github.com/dgnsrekt/authscope/internal/config"
	"github.com/dgnsrekt/authscope/internal/feed"
	"github.com/dgnsrekt/authscope/internal/inspect"
	"github.com/dgnsrekt/authscope/internal/metrics"
	"github.com/dgnsrekt/authscope/internal/netutil"
	"github.com/dgnsrekt/authscope/internal/storage"
	"github.com/dgnsrekt/authscope/internal/store"
)

// runtime wires the store to its observers and serves the API on top of it.
type runtime struct {
	cfg       *config.Config
	sessionID string

	store    *store.Store
	ingester metrics.CountingIngester
	broker   *feed.Broker
	archiver *storage.Archiver
}

func newRuntime(cfg *config.Config) *runtime {
	rt := &runtime{
		cfg:       cfg,
		sessionID: uuid.NewString(),
		broker:    feed.NewBroker(),
	}

	opts := []store.Option{
		store.WithObserver(metrics.ObserveStore),
		store.WithObserver(feed.NewPublisher(rt.broker).Observe),
	}
	if cfg.ArchiveDir != "" {
		registry := storage.NewWriterRegistry(cfg.ArchiveDir, rt.sessionID, cfg.ArchiveBufferSize, cfg.ArchiveMaxFileSizeMB)
		rt.archiver = storage.NewArchiver(registry, rt.sessionID)
		opts = append(opts, store.WithObserver(rt.archiver.Observe))
	}

	rt.store = store.New(opts...)
	metrics.TrackStore(rt.store)
	rt.ingester = metrics.CountingIngester{Store: rt.store}
	return rt
}

// serve runs the API until ctx is done.
func (rt *runtime) serve(ctx context.Context, svcOpts ...inspect.ServiceOption) error {
	ln, err := netutil.Listen(rt.cfg.BindAddr, rt.cfg.PortCandidates, rt.cfg.PortAutoFallback)
	if err != nil {
		return fmt.Errorf("failed to select bind address: %w", err)
	}

	svcOpts = append([]inspect.ServiceOption{inspect.WithIngester(rt.ingester)}, svcOpts...)
	svc := inspect.NewService(rt.store, svcOpts...)
	srv := &http.Server{
		Handler:           api.NewServer(svc, rt.broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ln.Addr().String()
		slog.Info("authscope listening", "addr", addr, "docs", "http://"+addr+"/docs", "session_id", rt.sessionID)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutdown signal received")
	// streaming clients only leave once their subscription is closed
	rt.broker.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("authscope shutdown failed", "error", err)
	}
	return nil
}

func (rt *runtime) close() {
	if rt.archiver == nil {
		return
	}
	if err := rt.archiver.Close(); err != nil {
		slog.Warn("Archive close failed", "error", err)
	}
}
