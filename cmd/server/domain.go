package main

import (
	"fmt"

	docconfig "github.com/JaimeStill/document-context/pkg/config"
	docimage "github.com/JaimeStill/document-context/pkg/image"

	"github.com/JaimeStill/page-ingest/internal/archive"
	"github.com/JaimeStill/page-ingest/internal/catalog"
	"github.com/JaimeStill/page-ingest/internal/chunks"
	"github.com/JaimeStill/page-ingest/internal/config"
	"github.com/JaimeStill/page-ingest/internal/duplicates"
	"github.com/JaimeStill/page-ingest/internal/infrastructure"
	"github.com/JaimeStill/page-ingest/internal/ingest"
	"github.com/JaimeStill/page-ingest/internal/quality"
	"github.com/JaimeStill/page-ingest/internal/uploads"
)

// Domain holds the ingestion systems built on top of the infrastructure.
type Domain struct {
	Uploads uploads.System
	Ingest  ingest.System
}

func NewDomain(infra *infrastructure.Infrastructure, cfg *config.Config) (*Domain, error) {
	ic := &cfg.Ingest

	extractor := archive.New(archive.Config{
		MaxPagesPerChapter: ic.MaxPagesPerChapter,
		MaxFiles:           ic.MaxFilesPerSession,
		MaxEntryBytes:      ic.MaxEntrySizeBytes(),
		MaxTotalBytes:      ic.MaxExtractedSizeBytes(),
		MaxWidth:           ic.MaxImageWidth,
		MaxHeight:          ic.MaxImageHeight,
		Renderer:           newRenderer(infra, ic),
	}, infra.Logger)

	index, err := newHashIndex(infra, ic)
	if err != nil {
		return nil, err
	}
	detector := duplicates.New(index, duplicates.Config{Threshold: ic.SimilarityThreshold()}, infra.Logger)

	store, err := newCatalog(infra, ic)
	if err != nil {
		return nil, err
	}

	up := uploads.New(
		chunks.New(infra.Storage),
		uploads.Config{
			MaxFileSize:    ic.MaxFileSizeBytes(),
			MaxSessionSize: ic.MaxSessionSizeBytes(),
			SessionTTL:     ic.SessionTTLDuration(),
		},
		infra.Logger,
	)

	sys := ingest.New(
		extractor,
		quality.New(infra.Logger),
		detector,
		store,
		ingest.Config{
			AutoApproveScore: ic.ApproveScore(),
			AutoRejectScore:  ic.RejectScore(),
			MinWidth:         ic.MinImageWidth,
			MinHeight:        ic.MinImageHeight,
		},
		ingest.NewMetrics(infra.Metrics),
		infra.Logger,
	)

	return &Domain{Uploads: up, Ingest: sys}, nil
}

// newRenderer returns nil when ImageMagick is unavailable; PDF uploads are
// then rejected as unsupported while archives keep working.
func newRenderer(infra *infrastructure.Infrastructure, ic *config.IngestConfig) docimage.Renderer {
	renderer, err := docimage.NewImageMagickRenderer(docconfig.ImageConfig{
		Format:  "png",
		DPI:     ic.PDFDPI,
		Options: make(map[string]any),
	})
	if err != nil {
		infra.Logger.Warn("pdf rendering disabled", "error", err)
		return nil
	}
	return renderer
}

func newHashIndex(infra *infrastructure.Infrastructure, ic *config.IngestConfig) (duplicates.Index, error) {
	switch ic.HashIndex {
	case config.BackendMemory:
		return duplicates.NewMemoryIndex(), nil
	case config.BackendPostgres:
		return duplicates.NewPostgresIndex(infra.Database.Connection()), nil
	case config.BackendRedis:
		return duplicates.NewRedisIndex(infra.Cache.Client()), nil
	default:
		return nil, fmt.Errorf("unknown hash index backend %q", ic.HashIndex)
	}
}

func newCatalog(infra *infrastructure.Infrastructure, ic *config.IngestConfig) (catalog.Store, error) {
	switch ic.Catalog {
	case config.BackendMemory:
		return catalog.NewMemoryStore(), nil
	case config.BackendPostgres:
		return catalog.NewPostgresStore(infra.Database.Connection(), infra.Storage, infra.Logger), nil
	default:
		return nil, fmt.Errorf("unknown catalog backend %q", ic.Catalog)
	}
}
