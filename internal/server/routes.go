package server

import (
	"log/slog"
	"maps"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggest/swgui/v5emb"

	"github.com/stadtaev/beatstatus/internal/handler/health"
)

func addRoutes(r chi.Router, logger *slog.Logger, hub *Hub, opts Options) {
	checks := map[string]health.Checker{"hub": hub}
	maps.Copy(checks, opts.Checks)

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("beatstatus API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
	r.Handle("/metrics", promhttp.Handler())

	r.With(allowAnyOrigin).Get("/status.json", handleSnapshot(hub))
	r.Get("/socket", handleSocket(logger, hub, opts))
}
