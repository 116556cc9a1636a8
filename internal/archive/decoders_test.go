package archive_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	docconfig "github.com/JaimeStill/document-context/pkg/config"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/page-ingest/internal/archive"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return data
}

// pages.rar and pages.7z hold page10.png (4x6), page2.png (5x6) and
// page1.png (6x6) alongside notes.txt, Thumbs.db and a __MACOSX entry.
func TestExtract_ContainerFixtures(t *testing.T) {
	tests := []struct {
		fixture string
		kind    archive.Kind
	}{
		{"pages.rar", archive.KindRAR},
		{"pages.7z", archive.Kind7Z},
	}

	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			data := readFixture(t, tt.fixture)

			detected, err := archive.DetectKind(data, "upload.bin")
			if err != nil {
				t.Fatalf("DetectKind() failed: %v", err)
			}
			if detected != tt.kind {
				t.Errorf("DetectKind() = %q, want %q", detected, tt.kind)
			}

			res, err := newExtractor(defaultConfig()).Extract(context.Background(), data, tt.kind)
			if err != nil {
				t.Fatalf("Extract() failed: %v", err)
			}

			if len(res.Buckets) != 1 {
				t.Fatalf("len(Buckets) = %d, want 1", len(res.Buckets))
			}

			want := []struct {
				path  string
				width int
			}{
				{"page1.png", 6},
				{"page2.png", 5},
				{"page10.png", 4},
			}

			entries := res.Buckets[0].Entries
			if len(entries) != len(want) {
				t.Fatalf("entries = %v, want %d pages", paths(res.Buckets[0]), len(want))
			}
			for i, w := range want {
				if entries[i].Path != w.path {
					t.Errorf("entry[%d] = %q, want %q", i, entries[i].Path, w.path)
				}
				if entries[i].Width != w.width || entries[i].Height != 6 {
					t.Errorf("entry[%d] dimensions = %dx%d, want %dx6",
						i, entries[i].Width, entries[i].Height, w.width)
				}
			}
		})
	}
}

func TestExtract_TruncatedContainers(t *testing.T) {
	tests := []struct {
		fixture string
		kind    archive.Kind
		cut     int
	}{
		{"pages.rar", archive.KindRAR, 250},
		{"pages.7z", archive.Kind7Z, 0},
	}

	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			data := readFixture(t, tt.fixture)
			cut := tt.cut
			if cut == 0 {
				cut = len(data) / 2
			}

			res, err := newExtractor(defaultConfig()).Extract(context.Background(), data[:cut], tt.kind)
			if !errors.Is(err, archive.ErrCorruptArchive) {
				t.Errorf("Extract() error = %v, want %v", err, archive.ErrCorruptArchive)
			}
			if res != nil {
				t.Error("Extract() returned a partial result")
			}
		})
	}
}

func TestExtract_TotalSizeCeiling(t *testing.T) {
	img := pngBytes(t, 4, 6)
	data := zipBytes(t,
		zipFile{"01.png", img},
		zipFile{"02.png", img},
		zipFile{"03.png", img},
	)

	cfg := defaultConfig()
	cfg.MaxTotalBytes = int64(2*len(img) + len(img)/2)

	_, err := newExtractor(cfg).Extract(context.Background(), data, archive.KindZIP)
	if !errors.Is(err, archive.ErrCorruptArchive) {
		t.Errorf("Extract() error = %v, want %v", err, archive.ErrCorruptArchive)
	}

	cfg.MaxTotalBytes = int64(3 * len(img))
	res, err := newExtractor(cfg).Extract(context.Background(), data, archive.KindZIP)
	if err != nil {
		t.Fatalf("Extract() at the ceiling failed: %v", err)
	}
	if res.Pages() != 3 {
		t.Errorf("Pages() = %d, want 3", res.Pages())
	}
}

// A large entry whose header does not decode is rejected as an invalid
// image, not as an oversized entry, because validation happens before the
// body is buffered.
func TestExtract_RejectsBadHeaderBeforeBuffering(t *testing.T) {
	zeros := make([]byte, 4<<20)
	data := zipBytes(t, zipFile{"00.png", zeros}, zipFile{"01.png", zeros})

	cfg := defaultConfig()
	cfg.MaxEntryBytes = 1 << 20

	_, err := newExtractor(cfg).Extract(context.Background(), data, archive.KindZIP)
	if !errors.Is(err, archive.ErrInvalidImage) {
		t.Errorf("Extract() error = %v, want %v", err, archive.ErrInvalidImage)
	}
}

type pageRenderer struct {
	mu    sync.Mutex
	pages map[int][]byte
	calls int
}

func (r *pageRenderer) Render(inputPath string, pageNum int, outputPath string) error {
	r.mu.Lock()
	r.calls++
	data, ok := r.pages[pageNum]
	r.mu.Unlock()
	if !ok {
		return errors.New("no such page")
	}
	return os.WriteFile(outputPath, data, 0600)
}

func (r *pageRenderer) FileExtension() string { return "png" }

func (r *pageRenderer) Settings() docconfig.ImageConfig {
	return docconfig.ImageConfig{Format: "png", DPI: 72}
}

func (r *pageRenderer) Parameters() []string { return nil }

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func pdfBytes(t *testing.T, pages int) []byte {
	t.Helper()
	imgs := make([]io.Reader, pages)
	for i := range imgs {
		imgs[i] = bytes.NewReader(jpegBytes(t, 32, 48))
	}
	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, imgs, nil, nil); err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	return buf.Bytes()
}

func TestExtract_PDF(t *testing.T) {
	renderer := &pageRenderer{pages: map[int][]byte{
		1: pngBytes(t, 4, 6),
		2: pngBytes(t, 5, 6),
		3: pngBytes(t, 6, 6),
	}}

	cfg := defaultConfig()
	cfg.Renderer = renderer

	res, err := newExtractor(cfg).Extract(context.Background(), pdfBytes(t, 3), archive.KindPDF)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}

	if renderer.calls != 3 {
		t.Errorf("render calls = %d, want 3", renderer.calls)
	}

	want := []string{"00001.png", "00002.png", "00003.png"}
	got := paths(res.Buckets[0])
	if len(got) != len(want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry[%d] = %q, want %q", i, got[i], want[i])
		}
		if w := res.Buckets[0].Entries[i].Width; w != i+4 {
			t.Errorf("entry[%d] width = %d, want %d", i, w, i+4)
		}
	}
}

func TestExtract_PDFErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   func(t *testing.T) []byte
		pages  map[int][]byte
		modify func(*archive.Config)
		want   error
	}{
		{
			name: "garbage",
			data: func(*testing.T) []byte { return []byte("%PDF-1.7\nnot really a pdf") },
			want: archive.ErrCorruptArchive,
		},
		{
			name:  "render failure",
			data:  func(t *testing.T) []byte { return pdfBytes(t, 2) },
			pages: map[int][]byte{1: pngBytes(t, 4, 6)},
			want:  archive.ErrCorruptArchive,
		},
		{
			name:   "too many pages",
			data:   func(t *testing.T) []byte { return pdfBytes(t, 3) },
			modify: func(c *archive.Config) { c.MaxFiles = 2 },
			want:   archive.ErrTooManyPages,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Renderer = &pageRenderer{pages: tt.pages}
			if tt.modify != nil {
				tt.modify(&cfg)
			}

			res, err := newExtractor(cfg).Extract(context.Background(), tt.data(t), archive.KindPDF)
			if !errors.Is(err, tt.want) {
				t.Errorf("Extract() error = %v, want %v", err, tt.want)
			}
			if res != nil {
				t.Error("Extract() returned a partial result")
			}
		})
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{archive.ErrUnsupportedFormat, "UnsupportedFormat"},
		{archive.ErrCorruptArchive, "CorruptArchive"},
		{archive.ErrEmptyArchive, "EmptyArchive"},
		{archive.ErrTooManyPages, "TooManyPages"},
		{archive.ErrInvalidImage, "InvalidImage"},
		{errors.New("other"), ""},
	}

	for _, tt := range tests {
		if got := archive.ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
