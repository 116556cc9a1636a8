package main

import (
	"time"

	"github.com/JaimeStill/page-ingest/internal/config"
	"github.com/JaimeStill/page-ingest/internal/infrastructure"
	"github.com/JaimeStill/page-ingest/internal/routes"
	"github.com/JaimeStill/page-ingest/internal/server"
	"github.com/JaimeStill/page-ingest/internal/uploads"
)

// Server coordinates the lifecycle of all subsystems.
type Server struct {
	infra  *infrastructure.Infrastructure
	domain *Domain
	http   server.System
	sweep  time.Duration
}

// NewServer creates and initializes the service with all subsystems.
func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	domain, err := NewDomain(infra, cfg)
	if err != nil {
		return nil, err
	}

	routeSys := routes.New(infra.Logger)
	registerRoutes(routeSys, infra, domain, cfg)

	handler := buildMiddleware(infra, cfg).Apply(routeSys.Build())

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"catalog", cfg.Ingest.Catalog,
		"hash_index", cfg.Ingest.HashIndex,
		"endpoints", len(routeSys.Endpoints()),
	)

	return &Server{
		infra:  infra,
		domain: domain,
		http:   server.New(&cfg.Server, handler, infra.Logger),
		sweep:  cfg.Ingest.SweepIntervalDuration(),
	}, nil
}

// Start begins all subsystems and returns when they are ready.
func (s *Server) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	uploads.StartSweeper(s.infra.Lifecycle, s.domain.Uploads, s.sweep, s.infra.Logger)

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

// Shutdown gracefully stops all subsystems within the provided timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}
