package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/page-ingest/internal/config"
	"github.com/JaimeStill/page-ingest/internal/infrastructure"
	"github.com/JaimeStill/page-ingest/internal/ingest"
	"github.com/JaimeStill/page-ingest/internal/uploads"
	"github.com/JaimeStill/page-ingest/pkg/lifecycle"
	"github.com/JaimeStill/page-ingest/pkg/routes"
)

// registerRoutes configures all HTTP routes for the service.
func registerRoutes(r routes.System, infra *infrastructure.Infrastructure, domain *Domain, cfg *config.Config) {
	uploadHandler := uploads.NewHandler(domain.Uploads, infra.Logger, cfg.Ingest.MaxFileSizeBytes())
	r.RegisterGroup(uploadHandler.Routes())

	ingestHandler := ingest.NewHandler(domain.Uploads, domain.Ingest, infra.Logger)
	r.RegisterGroup(ingestHandler.Routes())

	r.RegisterRoute(routes.Route{
		Method:  "GET",
		Pattern: "/healthz",
		Handler: handleHealthCheck,
	})

	r.RegisterRoute(routes.Route{
		Method:  "GET",
		Pattern: "/readyz",
		Handler: func(w http.ResponseWriter, r *http.Request) {
			handleReadinessCheck(w, infra.Lifecycle)
		},
	})

	metrics := promhttp.HandlerFor(infra.Metrics, promhttp.HandlerOpts{Registry: infra.Metrics})
	r.RegisterRoute(routes.Route{
		Method:  "GET",
		Pattern: "/metrics",
		Handler: metrics.ServeHTTP,
	})
}

// handleHealthCheck responds with OK status for health monitoring.
func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func handleReadinessCheck(w http.ResponseWriter, ready lifecycle.ReadinessChecker) {
	if !ready.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT READY"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}
