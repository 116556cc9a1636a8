package main

import (
	"github.com/JaimeStill/page-ingest/internal/config"
	"github.com/JaimeStill/page-ingest/internal/infrastructure"
	"github.com/JaimeStill/page-ingest/internal/middleware"
)

// buildMiddleware creates the middleware stack with metrics, logging, and CORS.
func buildMiddleware(infra *infrastructure.Infrastructure, cfg *config.Config) middleware.System {
	middlewareSys := middleware.New()
	middlewareSys.Use(middleware.TrimSlash())
	middlewareSys.Use(middleware.Metrics(infra.Metrics))
	middlewareSys.Use(middleware.Logger(infra.Logger))
	middlewareSys.Use(middleware.CORS(&cfg.CORS))
	return middlewareSys
}
