package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgnsrekt/authscope/internal/feed"
	"github.com/dgnsrekt/authscope/internal/inspect"
	"github.com/dgnsrekt/authscope/internal/store"
	"github.com/dgnsrekt/authscope/internal/tokens"
	"github.com/dgnsrekt/authscope/internal/types"
)

type Service interface {
	ListRequests(ctx context.Context) ([]inspect.RequestView, error)
	GetRequest(ctx context.Context, id string) (inspect.RequestView, error)
	ClearRequests(ctx context.Context) error
	Stats(ctx context.Context) (store.Stats, error)
	Import(ctx context.Context, recs []types.CapturedRequest) (int, error)
	ListTabs(ctx context.Context) ([]types.TabInfo, error)
	DecodeToken(ctx context.Context, value string) (inspect.TokenView, error)
}

// NewServer builds the HTTP handler. broker may be nil, in which case the
// live feed endpoints are not mounted.
func NewServer(svc Service, broker *feed.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(requestMetrics)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("authscope API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Handle("/metrics", promhttp.Handler())

	if broker != nil {
		router.Get("/api/v1/events", feed.SSEHandler(broker))
		router.Get("/api/v1/ws", feed.WSHandler(broker))
	}

	registerRequestHandlers(api, svc)
	registerTokenHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var malformed *tokens.MalformedTokenError
	switch {
	case errors.As(err, &malformed):
		return huma.Error422UnprocessableEntity(malformed.Error())
	case errors.Is(err, inspect.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
