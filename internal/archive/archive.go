// Package archive turns a container (ZIP, RAR, 7Z or PDF) into ordered,
// validated page images grouped into chapter buckets.
package archive

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path"
	"slices"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	docimage "github.com/JaimeStill/document-context/pkg/image"
	_ "golang.org/x/image/webp"
)

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var ignoredNames = map[string]bool{
	"thumbs.db":   true,
	"desktop.ini": true,
}

// Config bounds the work a single extraction may perform. MaxEntryBytes and
// MaxTotalBytes are decompressed sizes, per entry and across all entries.
type Config struct {
	MaxPagesPerChapter int
	MaxFiles           int
	MaxEntryBytes      int64
	MaxTotalBytes      int64
	MaxWidth           int
	MaxHeight          int

	// Renderer rasterizes PDF pages. PDF extraction fails with
	// ErrUnsupportedFormat when nil.
	Renderer docimage.Renderer
}

// Entry is one recovered page image.
type Entry struct {
	Path   string  `json:"path"`
	Bucket string  `json:"bucket"`
	Key    float64 `json:"-"`
	Size   int64   `json:"size"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Format string  `json:"format"`
	Data   []byte  `json:"-"`
}

// Bucket groups the entries inferred to belong to one chapter.
type Bucket struct {
	Name    string
	Key     float64
	Entries []Entry
}

// Result is the ordered output of an extraction.
type Result struct {
	Kind    Kind
	Buckets []Bucket
}

// Pages returns the total number of entries across all buckets.
func (r *Result) Pages() int {
	n := 0
	for _, b := range r.Buckets {
		n += len(b.Entries)
	}
	return n
}

// Extractor decodes containers according to its Config.
type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Extractor {
	return &Extractor{
		cfg:    cfg,
		logger: logger.With("system", "archive"),
	}
}

// Extract lists, filters, validates and orders every page image in data.
// Any failure aborts the whole extraction; no partial result is returned.
func (e *Extractor) Extract(ctx context.Context, data []byte, kind Kind) (*Result, error) {
	dec, err := e.decoderFor(kind)
	if err != nil {
		return nil, err
	}

	w := &walker{ctx: ctx, cfg: e.cfg}

	if err := dec.walk(data, w); err != nil {
		return nil, err
	}

	if len(w.entries) == 0 {
		return nil, ErrEmptyArchive
	}

	buckets, err := e.group(w.entries)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("extraction complete",
		"kind", kind,
		"buckets", len(buckets),
		"pages", len(w.entries),
		"bytes", w.total)

	return &Result{Kind: kind, Buckets: buckets}, nil
}

func (e *Extractor) decoderFor(kind Kind) (decoder, error) {
	switch kind {
	case KindZIP:
		return zipDecoder{}, nil
	case KindRAR:
		return rarDecoder{}, nil
	case Kind7Z:
		return sevenZipDecoder{}, nil
	case KindPDF:
		if e.cfg.Renderer == nil {
			return nil, fmt.Errorf("%w: no pdf renderer configured", ErrUnsupportedFormat)
		}
		return pdfDecoder{renderer: e.cfg.Renderer}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, kind)
	}
}

func (e *Extractor) group(entries []Entry) ([]Bucket, error) {
	paths := make([][]string, len(entries))
	for i, entry := range entries {
		paths[i] = strings.Split(entry.Path, "/")
	}
	strip := commonRoot(paths)

	index := make(map[string]int)
	var buckets []Bucket

	for i, entry := range entries {
		parts := paths[i]
		if strip {
			parts = parts[1:]
		}

		name := ""
		if len(parts) > 1 {
			name = parts[0]
		}
		entry.Bucket = name

		idx, ok := index[name]
		if !ok {
			idx = len(buckets)
			index[name] = idx
			buckets = append(buckets, Bucket{Name: name, Key: OrderKey(name)})
		}
		buckets[idx].Entries = append(buckets[idx].Entries, entry)
	}

	for i := range buckets {
		b := &buckets[i]
		if e.cfg.MaxPagesPerChapter > 0 && len(b.Entries) > e.cfg.MaxPagesPerChapter {
			return nil, fmt.Errorf("%w: bucket %q has %d pages, limit %d",
				ErrTooManyPages, b.Name, len(b.Entries), e.cfg.MaxPagesPerChapter)
		}

		slices.SortStableFunc(b.Entries, func(x, y Entry) int {
			if c := cmp.Compare(x.Key, y.Key); c != 0 {
				return c
			}
			return strings.Compare(x.Path, y.Path)
		})
	}

	slices.SortStableFunc(buckets, func(x, y Bucket) int {
		if c := cmp.Compare(x.Key, y.Key); c != 0 {
			return c
		}
		return strings.Compare(x.Name, y.Name)
	})

	return buckets, nil
}

// commonRoot reports whether every path sits under the same top-level folder
// with at least one further folder below it. That wrapper folder carries no
// chapter information and is skipped when bucketing.
func commonRoot(paths [][]string) bool {
	if len(paths) == 0 {
		return false
	}
	root := paths[0][0]
	for _, p := range paths {
		if len(p) < 3 || p[0] != root {
			return false
		}
	}
	return true
}

type decoder interface {
	walk(data []byte, w *walker) error
}

// walker collects accepted entries from a decoder. Each entry is validated
// as it is read so a bad entry fails before the next one is buffered.
type walker struct {
	ctx     context.Context
	cfg     Config
	entries []Entry
	total   int64
}

// accepts reports whether an entry name is a candidate page image.
func (w *walker) accepts(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") || strings.Contains(name, "/__MACOSX/") {
		return false
	}

	base := path.Base(name)
	if strings.HasPrefix(base, ".") || ignoredNames[strings.ToLower(base)] {
		return false
	}

	return allowedExt[strings.ToLower(path.Ext(base))]
}

// add reads and validates an accepted entry. Zero-length entries are
// dropped. The read is bounded by the per-entry ceiling and by what remains
// of the total ceiling, and stops at the image header when the header does
// not decode.
func (w *walker) add(name string, r io.Reader) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	limit, total := w.limit()
	src := &countingReader{r: io.LimitReader(r, limit+1)}
	br := bufio.NewReader(src)

	if _, err := br.Peek(1); err != nil {
		if src.err != nil {
			return fmt.Errorf("%w: read %s: %v", ErrCorruptArchive, name, src.err)
		}
		return nil
	}

	if w.cfg.MaxFiles > 0 && len(w.entries) >= w.cfg.MaxFiles {
		return fmt.Errorf("%w: more than %d files", ErrTooManyPages, w.cfg.MaxFiles)
	}

	var buf bytes.Buffer
	cfg, format, decodeErr := image.DecodeConfig(io.TeeReader(br, &buf))
	if decodeErr == nil {
		if err := w.checkDimensions(name, cfg); err != nil {
			return err
		}
		_, decodeErr = buf.ReadFrom(br)
	}

	switch {
	case src.err != nil:
		return fmt.Errorf("%w: read %s: %v", ErrCorruptArchive, name, src.err)
	case src.n > limit && total:
		return fmt.Errorf("%w: decompressed content exceeds %d bytes", ErrCorruptArchive, w.cfg.MaxTotalBytes)
	case src.n > limit:
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrCorruptArchive, name, limit)
	case decodeErr != nil:
		return fmt.Errorf("%w: %s: %v", ErrInvalidImage, name, decodeErr)
	}

	data := buf.Bytes()
	w.total += int64(len(data))
	w.entries = append(w.entries, Entry{
		Path:   name,
		Key:    fileKey(name),
		Size:   int64(len(data)),
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
		Data:   data,
	})
	return nil
}

// limit returns the byte budget for the next entry and whether the total
// ceiling, rather than the per-entry one, is what binds it.
func (w *walker) limit() (int64, bool) {
	limit := w.cfg.MaxEntryBytes
	if limit <= 0 {
		limit = 1<<63 - 2
	}
	if w.cfg.MaxTotalBytes > 0 {
		if remaining := w.cfg.MaxTotalBytes - w.total; remaining < limit {
			return remaining, true
		}
	}
	return limit, false
}

func (w *walker) checkDimensions(name string, cfg image.Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: %s: empty dimensions", ErrInvalidImage, name)
	}

	if (w.cfg.MaxWidth > 0 && cfg.Width > w.cfg.MaxWidth) ||
		(w.cfg.MaxHeight > 0 && cfg.Height > w.cfg.MaxHeight) {
		return fmt.Errorf("%w: %s: %dx%d exceeds %dx%d",
			ErrInvalidImage, name, cfg.Width, cfg.Height, w.cfg.MaxWidth, w.cfg.MaxHeight)
	}
	return nil
}

// countingReader records how much was read from a container entry and the
// first read failure other than io.EOF.
type countingReader struct {
	r   io.Reader
	n   int64
	err error
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if err != nil && err != io.EOF && c.err == nil {
		c.err = err
	}
	return n, err
}

// cleanName normalizes an entry name to a slash-separated relative path.
// Names that escape the archive root are rejected.
func cleanName(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return "", false
	}

	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}
