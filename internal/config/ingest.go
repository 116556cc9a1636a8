package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
)

const (
	EnvIngestMaxFileSize         = "INGEST_MAX_FILE_SIZE"
	EnvIngestMaxSessionSize      = "INGEST_MAX_SESSION_SIZE"
	EnvIngestMaxExtractedSize    = "INGEST_MAX_EXTRACTED_SIZE"
	EnvIngestMaxFilesPerSession  = "INGEST_MAX_FILES_PER_SESSION"
	EnvIngestMaxPagesPerChapter  = "INGEST_MAX_PAGES_PER_CHAPTER"
	EnvIngestSessionTTL          = "INGEST_SESSION_TTL"
	EnvIngestSweepInterval       = "INGEST_SWEEP_INTERVAL"
	EnvIngestHashIndex           = "INGEST_HASH_INDEX"
	EnvIngestCatalog             = "INGEST_CATALOG"
	EnvIngestAutoApproveScore    = "INGEST_AUTO_APPROVE_SCORE"
	EnvIngestAutoRejectScore     = "INGEST_AUTO_REJECT_SCORE"
	EnvIngestDuplicateSimilarity = "INGEST_DUPLICATE_SIMILARITY"
)

// Hash index and catalog backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// IngestConfig holds the limits and thresholds of the ingestion pipeline.
// Sizes accept human-readable values ("20MB"); durations use time.ParseDuration.
type IngestConfig struct {
	MaxFileSize         string   `toml:"max_file_size"`
	MaxSessionSize      string   `toml:"max_session_size"`
	MaxEntrySize        string   `toml:"max_entry_size"`
	MaxExtractedSize    string   `toml:"max_extracted_size"`
	MaxFilesPerSession  int      `toml:"max_files_per_session"`
	MaxPagesPerChapter  int      `toml:"max_pages_per_chapter"`
	MinImageWidth       int      `toml:"min_image_width"`
	MinImageHeight      int      `toml:"min_image_height"`
	MaxImageWidth       int      `toml:"max_image_width"`
	MaxImageHeight      int      `toml:"max_image_height"`
	AutoApproveScore    *float64 `toml:"auto_approve_score"`
	AutoRejectScore     *float64 `toml:"auto_reject_score"`
	DuplicateSimilarity *float64 `toml:"duplicate_similarity"`
	SessionTTL          string   `toml:"session_ttl"`
	SweepInterval       string   `toml:"sweep_interval"`
	HashIndex           string   `toml:"hash_index"`
	Catalog             string   `toml:"catalog"`
	PDFDPI              int      `toml:"pdf_dpi"`

	maxFileSize    int64
	maxSessionSize int64
	maxEntrySize   int64
	maxExtracted   int64
}

func (c *IngestConfig) MaxFileSizeBytes() int64    { return c.maxFileSize }
func (c *IngestConfig) MaxSessionSizeBytes() int64 { return c.maxSessionSize }
func (c *IngestConfig) MaxEntrySizeBytes() int64   { return c.maxEntrySize }

// MaxExtractedSizeBytes is the ceiling on the decompressed size of all
// entries accepted from one container.
func (c *IngestConfig) MaxExtractedSizeBytes() int64 { return c.maxExtracted }

// Scores are pointers so an explicit zero in TOML or an overlay is kept.
// They are non-nil after Finalize.

func (c *IngestConfig) ApproveScore() float64        { return *c.AutoApproveScore }
func (c *IngestConfig) RejectScore() float64         { return *c.AutoRejectScore }
func (c *IngestConfig) SimilarityThreshold() float64 { return *c.DuplicateSimilarity }

// SessionTTLDuration parses and returns the session TTL as a time.Duration.
func (c *IngestConfig) SessionTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.SessionTTL)
	return d
}

// SweepIntervalDuration parses and returns the sweep interval as a time.Duration.
func (c *IngestConfig) SweepIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.SweepInterval)
	return d
}

// Finalize applies defaults, loads environment overrides, and validates the ingest configuration.
func (c *IngestConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *IngestConfig) Merge(overlay *IngestConfig) {
	mergeString(&c.MaxFileSize, overlay.MaxFileSize)
	mergeString(&c.MaxSessionSize, overlay.MaxSessionSize)
	mergeString(&c.MaxEntrySize, overlay.MaxEntrySize)
	mergeString(&c.MaxExtractedSize, overlay.MaxExtractedSize)
	mergeString(&c.SessionTTL, overlay.SessionTTL)
	mergeString(&c.SweepInterval, overlay.SweepInterval)
	mergeString(&c.HashIndex, overlay.HashIndex)
	mergeString(&c.Catalog, overlay.Catalog)

	mergeInt(&c.MaxFilesPerSession, overlay.MaxFilesPerSession)
	mergeInt(&c.MaxPagesPerChapter, overlay.MaxPagesPerChapter)
	mergeInt(&c.MinImageWidth, overlay.MinImageWidth)
	mergeInt(&c.MinImageHeight, overlay.MinImageHeight)
	mergeInt(&c.MaxImageWidth, overlay.MaxImageWidth)
	mergeInt(&c.MaxImageHeight, overlay.MaxImageHeight)
	mergeInt(&c.PDFDPI, overlay.PDFDPI)

	mergeFloat(&c.AutoApproveScore, overlay.AutoApproveScore)
	mergeFloat(&c.AutoRejectScore, overlay.AutoRejectScore)
	mergeFloat(&c.DuplicateSimilarity, overlay.DuplicateSimilarity)
}

func (c *IngestConfig) loadDefaults() {
	if c.MaxFileSize == "" {
		c.MaxFileSize = "20MB"
	}
	if c.MaxSessionSize == "" {
		c.MaxSessionSize = "20MB"
	}
	if c.MaxEntrySize == "" {
		c.MaxEntrySize = "50MB"
	}
	if c.MaxExtractedSize == "" {
		c.MaxExtractedSize = "2GB"
	}
	if c.MaxFilesPerSession == 0 {
		c.MaxFilesPerSession = 5000
	}
	if c.MaxPagesPerChapter == 0 {
		c.MaxPagesPerChapter = 2000
	}
	if c.MinImageWidth == 0 {
		c.MinImageWidth = 400
	}
	if c.MinImageHeight == 0 {
		c.MinImageHeight = 600
	}
	if c.MaxImageWidth == 0 {
		c.MaxImageWidth = 10000
	}
	if c.MaxImageHeight == 0 {
		c.MaxImageHeight = 30000
	}
	defaultFloat(&c.AutoApproveScore, 0.7)
	defaultFloat(&c.AutoRejectScore, 0.3)
	defaultFloat(&c.DuplicateSimilarity, 0.9)
	if c.SessionTTL == "" {
		c.SessionTTL = "24h"
	}
	if c.SweepInterval == "" {
		c.SweepInterval = "10m"
	}
	if c.HashIndex == "" {
		c.HashIndex = BackendMemory
	}
	if c.Catalog == "" {
		c.Catalog = BackendMemory
	}
	if c.PDFDPI == 0 {
		c.PDFDPI = 150
	}
}

func (c *IngestConfig) loadEnv() {
	envString(EnvIngestMaxFileSize, &c.MaxFileSize)
	envString(EnvIngestMaxSessionSize, &c.MaxSessionSize)
	envString(EnvIngestMaxExtractedSize, &c.MaxExtractedSize)
	envString(EnvIngestSessionTTL, &c.SessionTTL)
	envString(EnvIngestSweepInterval, &c.SweepInterval)
	envString(EnvIngestHashIndex, &c.HashIndex)
	envString(EnvIngestCatalog, &c.Catalog)

	if v := os.Getenv(EnvIngestMaxFilesPerSession); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxFilesPerSession = n
		}
	}
	if v := os.Getenv(EnvIngestMaxPagesPerChapter); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxPagesPerChapter = n
		}
	}
	envFloat(EnvIngestAutoApproveScore, &c.AutoApproveScore)
	envFloat(EnvIngestAutoRejectScore, &c.AutoRejectScore)
	envFloat(EnvIngestDuplicateSimilarity, &c.DuplicateSimilarity)
}

func (c *IngestConfig) validate() error {
	var err error
	if c.maxFileSize, err = parseSize("max_file_size", c.MaxFileSize); err != nil {
		return err
	}
	if c.maxSessionSize, err = parseSize("max_session_size", c.MaxSessionSize); err != nil {
		return err
	}
	if c.maxEntrySize, err = parseSize("max_entry_size", c.MaxEntrySize); err != nil {
		return err
	}
	if c.maxExtracted, err = parseSize("max_extracted_size", c.MaxExtractedSize); err != nil {
		return err
	}

	if c.MaxFilesPerSession <= 0 {
		return fmt.Errorf("max_files_per_session must be positive")
	}
	if c.MaxPagesPerChapter <= 0 {
		return fmt.Errorf("max_pages_per_chapter must be positive")
	}
	if c.MinImageWidth > c.MaxImageWidth || c.MinImageHeight > c.MaxImageHeight {
		return fmt.Errorf("min image dimensions exceed max image dimensions")
	}

	for name, v := range map[string]*float64{
		"auto_approve_score":   c.AutoApproveScore,
		"auto_reject_score":    c.AutoRejectScore,
		"duplicate_similarity": c.DuplicateSimilarity,
	} {
		if v == nil {
			return fmt.Errorf("%s is required", name)
		}
		if *v < 0 || *v > 1 {
			return fmt.Errorf("%s must be within [0, 1]", name)
		}
	}
	if *c.AutoRejectScore > *c.AutoApproveScore {
		return fmt.Errorf("auto_reject_score must not exceed auto_approve_score")
	}

	if d, err := time.ParseDuration(c.SessionTTL); err != nil || d <= 0 {
		return fmt.Errorf("invalid session_ttl: %q", c.SessionTTL)
	}
	if d, err := time.ParseDuration(c.SweepInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid sweep_interval: %q", c.SweepInterval)
	}

	switch c.HashIndex {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("invalid hash_index %q", c.HashIndex)
	}
	switch c.Catalog {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("invalid catalog %q", c.Catalog)
	}

	return nil
}

func parseSize(name, v string) (int64, error) {
	size, err := units.FromHumanSize(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if size <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return size, nil
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func mergeFloat(dst **float64, v *float64) {
	if v != nil {
		f := *v
		*dst = &f
	}
}

func defaultFloat(dst **float64, v float64) {
	if *dst == nil {
		*dst = &v
	}
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envFloat(name string, dst **float64) {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = &f
		}
	}
}
