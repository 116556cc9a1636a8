package archive_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/JaimeStill/page-ingest/internal/archive"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input string
		want  archive.Kind
	}{
		{"zip", archive.KindZIP},
		{".cbz", archive.KindZIP},
		{"CBR", archive.KindRAR},
		{"rar", archive.KindRAR},
		{"7z", archive.Kind7Z},
		{".cb7", archive.Kind7Z},
		{"pdf", archive.KindPDF},
		{"application/pdf", archive.KindPDF},
		{"application/x-7z-compressed", archive.Kind7Z},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := archive.ParseKind(tt.input)
			if err != nil {
				t.Fatalf("ParseKind(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseKind_Unsupported(t *testing.T) {
	for _, input := range []string{"", "tar", "image/png"} {
		if _, err := archive.ParseKind(input); !errors.Is(err, archive.ErrUnsupportedFormat) {
			t.Errorf("ParseKind(%q) error = %v, want ErrUnsupportedFormat", input, err)
		}
	}
}

func TestDetectKind(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create("001.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("not really a png"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		data     []byte
		filename string
		want     archive.Kind
	}{
		{"zip magic", buf.Bytes(), "upload.bin", archive.KindZIP},
		{"pdf magic", []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"), "upload.bin", archive.KindPDF},
		{"extension fallback", []byte("garbage"), "chapter.cbr", archive.KindRAR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := archive.DetectKind(tt.data, tt.filename)
			if err != nil {
				t.Fatalf("DetectKind() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectKind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectKind_Unknown(t *testing.T) {
	_, err := archive.DetectKind([]byte("plain text"), "notes")
	if !errors.Is(err, archive.ErrUnsupportedFormat) {
		t.Errorf("DetectKind() error = %v, want ErrUnsupportedFormat", err)
	}
}
