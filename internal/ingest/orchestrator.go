package ingest

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/page-ingest/internal/archive"
	"github.com/JaimeStill/page-ingest/internal/catalog"
	"github.com/JaimeStill/page-ingest/internal/duplicates"
	"github.com/JaimeStill/page-ingest/internal/quality"
)

// Analyzer scores a decoded page. *quality.Analyzer satisfies it.
type Analyzer interface {
	Analyze(img image.Image) quality.Analysis
}

type orchestrator struct {
	extractor *archive.Extractor
	analyzer  Analyzer
	detector  *duplicates.Detector
	store     catalog.Store
	cfg       Config
	metrics   *Metrics
	locks     *runLocks
	logger    *slog.Logger
}

// New creates the ingestion system. metrics may be nil.
func New(
	extractor *archive.Extractor,
	analyzer Analyzer,
	detector *duplicates.Detector,
	store catalog.Store,
	cfg Config,
	metrics *Metrics,
	logger *slog.Logger,
) System {
	return &orchestrator{
		extractor: extractor,
		analyzer:  analyzer,
		detector:  detector,
		store:     store,
		cfg:       cfg,
		metrics:   metrics,
		locks:     newRunLocks(),
		logger:    logger.With("system", "ingest"),
	}
}

// page is the working state of one entry during a run.
type page struct {
	entry    archive.Entry
	bucket   int
	decision Decision
}

type run struct {
	id      string
	state   State
	started time.Time
	logger  *slog.Logger
	metrics *Metrics
}

func (r *run) transition(next State) {
	now := time.Now()
	r.metrics.stage(r.state, now.Sub(r.started).Seconds())
	r.logger.Debug("run state changed", "from", r.state, "to", next)
	r.state = next
	r.started = now
}

func (r *run) fail(err error) error {
	r.transition(StateFailed)
	r.metrics.run(StateFailed)
	r.logger.Warn("run failed", "error", err)
	return err
}

func (o *orchestrator) Ingest(ctx context.Context, req Request) (*Result, error) {
	id := uuid.NewString()
	r := &run{
		id:      id,
		state:   StatePending,
		started: time.Now(),
		logger:  o.logger.With("run", id, "volume", req.Target.VolumeID),
		metrics: o.metrics,
	}

	if req.Target.VolumeID == "" {
		return nil, r.fail(fmt.Errorf("%w: volume_id is required", ErrInvalidRequest))
	}

	kind := req.Kind
	if kind == "" {
		detected, err := archive.DetectKind(req.Data, req.Filename)
		if err != nil {
			return nil, r.fail(err)
		}
		kind = detected
	}

	r.transition(StateExtracting)
	extracted, err := o.extractor.Extract(ctx, req.Data, kind)
	if err != nil {
		return nil, r.fail(err)
	}
	o.metrics.recovered(extracted.Pages())

	pages := flatten(extracted)

	r.transition(StateAnalyzing)
	if err := o.analyze(ctx, pages, req.Target.Scope); err != nil {
		return nil, r.fail(err)
	}

	r.transition(StateDeciding)
	o.decideAll(pages)

	res := &Result{
		RunID: id,
		Kind:  kind,
	}

	r.transition(StateCommitting)
	chapters, err := o.commit(ctx, extracted.Buckets, pages, req.Target, r.logger)
	if err != nil {
		r.transition(StateRolledBack)
		r.metrics.run(StateRolledBack)
		r.logger.Warn("run rolled back", "error", err)
		return nil, &CommitError{
			RunID:     id,
			State:     StateRolledBack,
			Decisions: o.decisions(pages),
			Err:       err,
		}
	}

	res.CreatedChapters = chapters
	if res.CreatedChapters == nil {
		res.CreatedChapters = []Chapter{}
	}
	res.Decisions = o.decisions(pages)
	for _, d := range res.Decisions {
		if d.PageID != "" {
			res.CreatedPages++
		}
	}

	r.transition(StateDone)
	r.metrics.run(StateDone)
	res.State = StateDone

	r.logger.Info("run complete",
		"kind", kind,
		"pages", len(pages),
		"chapters", len(chapters),
		"created_pages", res.CreatedPages)

	return res, nil
}

func (o *orchestrator) decisions(pages []*page) []Decision {
	out := make([]Decision, len(pages))
	for i, p := range pages {
		out[i] = p.decision
		o.metrics.decision(p.decision.Action)
	}
	return out
}

func flatten(res *archive.Result) []*page {
	pages := make([]*page, 0, res.Pages())
	for bi, b := range res.Buckets {
		for _, e := range b.Entries {
			pages = append(pages, &page{
				entry:  e,
				bucket: bi,
				decision: Decision{
					Path:   e.Path,
					Bucket: b.Name,
					Width:  e.Width,
					Height: e.Height,
				},
			})
		}
	}
	return pages
}

// analyze decodes every page and runs quality analysis alongside hashing and
// the index lookup. Work is bounded by the configured worker count.
func (o *orchestrator) analyze(ctx context.Context, pages []*page, scope duplicates.Scope) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.workers())

	for _, p := range pages {
		g.Go(func() error {
			img, err := quality.Decode(p.entry.Data)
			if err != nil {
				return fmt.Errorf("%s: %w", p.entry.Path, err)
			}

			var wg sync.WaitGroup
			wg.Go(func() {
				p.decision.Analysis = o.analyzer.Analyze(img)
			})

			hash, err := duplicates.ComputeHash(img)
			if err == nil {
				p.decision.Hash = hash
				p.decision.Matches, err = o.detector.FindMatches(gctx, hash, scope)
			}
			wg.Wait()

			if err != nil {
				return fmt.Errorf("%s: %w", p.entry.Path, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// decideAll checks each page against earlier pages of the same run, then
// applies the decision rule.
func (o *orchestrator) decideAll(pages []*page) {
	var seen []*page

	for _, p := range pages {
		for _, prev := range seen {
			if m, ok := o.detector.Compare(p.decision.Hash, prev.decision.Hash); ok {
				m.Path = prev.entry.Path
				p.decision.Matches = append(p.decision.Matches, m)
			}
		}

		o.decide(p)

		if p.decision.Action.Persisted() {
			seen = append(seen, p)
		}
	}
}

func (o *orchestrator) decide(p *page) {
	p.decision.Action, p.decision.Reasons = o.cfg.decide(
		p.decision.Analysis,
		p.decision.Matches,
		p.entry.Width,
		p.entry.Height,
		o.detector.Threshold(),
	)
}

// recheck refreshes the index matches of kept pages. It runs under the
// commit lock, so pages committed by a concurrent run since the analyze
// stage are seen here. Matches against earlier pages of this run are kept.
func (o *orchestrator) recheck(ctx context.Context, pages []*page, scope duplicates.Scope) error {
	if scope.Empty() {
		return nil
	}

	for _, p := range pages {
		if !p.decision.Action.Persisted() {
			continue
		}

		fresh, err := o.detector.FindMatches(ctx, p.decision.Hash, scope)
		if err != nil {
			return fmt.Errorf("%s: %w", p.entry.Path, err)
		}

		matches := fresh
		for _, m := range p.decision.Matches {
			if m.PageID == "" {
				matches = append(matches, m)
			}
		}
		p.decision.Matches = matches
		o.decide(p)
	}
	return nil
}

// commit writes every bucket with at least one kept page as a chapter. Pages
// are numbered from 1 without gaps in their extracted order. Any failure
// rolls back the whole transaction. Hashes of committed pages are recorded
// before the lock is released.
func (o *orchestrator) commit(ctx context.Context, buckets []archive.Bucket, pages []*page, target Target, logger *slog.Logger) ([]Chapter, error) {
	key := catalog.LockKey(target.VolumeID)
	unlock := o.locks.acquire(key, target.Scope)
	defer unlock()

	if err := o.recheck(ctx, pages, target.Scope); err != nil {
		return nil, err
	}

	kept := make([][]*page, len(buckets))
	total := 0
	for _, p := range pages {
		if p.decision.Action.Persisted() {
			kept[p.bucket] = append(kept[p.bucket], p)
			total++
		}
	}
	if total == 0 {
		return nil, nil
	}

	tx, err := o.store.Begin(ctx, key)
	if err != nil {
		return nil, err
	}

	chapters, err := o.write(ctx, tx, buckets, kept, target)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			o.logger.Error("rollback failed", "error", rbErr)
		}
		clearPersisted(pages)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		clearPersisted(pages)
		return nil, err
	}

	o.recordHashes(ctx, pages, target.Scope, logger)

	return chapters, nil
}

func (o *orchestrator) write(ctx context.Context, tx catalog.Tx, buckets []archive.Bucket, kept [][]*page, target Target) ([]Chapter, error) {
	var chapters []Chapter

	for bi, b := range buckets {
		if len(kept[bi]) == 0 {
			continue
		}

		number, title := chapterIdentity(b, len(buckets) == 1, target)

		chapterID, err := tx.BeginChapter(ctx, target.VolumeID, number, title)
		if err != nil {
			return nil, fmt.Errorf("begin chapter %q: %w", b.Name, err)
		}

		for i, p := range kept[bi] {
			n := i + 1
			pageID, err := tx.AppendPage(ctx, chapterID, catalog.Page{
				Number: n,
				Data:   p.entry.Data,
				Width:  p.entry.Width,
				Height: p.entry.Height,
				Size:   p.entry.Size,
				Format: p.entry.Format,
			})
			if err != nil {
				return nil, fmt.Errorf("append page %d of %q: %w", n, b.Name, err)
			}
			p.decision.PageNumber = n
			p.decision.PageID = pageID
		}

		chapters = append(chapters, Chapter{
			ID:     chapterID,
			Bucket: b.Name,
			Number: number,
			Title:  title,
			Pages:  len(kept[bi]),
		})
	}

	return chapters, nil
}

// chapterIdentity derives a chapter's number and title. A lone bucket takes
// the target's values when set; otherwise the bucket folder decides, and a
// folder without a number yields an unnumbered chapter.
func chapterIdentity(b archive.Bucket, single bool, target Target) (*float64, string) {
	var number *float64
	if !math.IsInf(b.Key, 1) {
		n := b.Key
		number = &n
	}
	title := b.Name

	if single {
		if target.ChapterNumber != nil {
			number = target.ChapterNumber
		}
		if target.Title != "" {
			title = target.Title
		}
	}
	return number, title
}

func clearPersisted(pages []*page) {
	for _, p := range pages {
		p.decision.PageNumber = 0
		p.decision.PageID = ""
	}
}

// recordHashes stores the hashes of committed pages. The catalog commit has
// already happened, so failures are logged rather than returned.
func (o *orchestrator) recordHashes(ctx context.Context, pages []*page, scope duplicates.Scope, logger *slog.Logger) {
	var entries []duplicates.IndexEntry
	for _, p := range pages {
		if p.decision.PageID != "" {
			entries = append(entries, duplicates.IndexEntry{Hash: p.decision.Hash, PageID: p.decision.PageID})
		}
	}
	if err := o.detector.Record(ctx, scope, entries...); err != nil {
		logger.Warn("failed to record page hashes", "pages", len(entries), "error", err)
	}
}
