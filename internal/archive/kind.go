package archive

import (
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is a supported container format.
type Kind string

const (
	KindZIP Kind = "zip"
	KindRAR Kind = "rar"
	Kind7Z  Kind = "7z"
	KindPDF Kind = "pdf"
)

var kindAliases = map[string]Kind{
	"zip": KindZIP,
	"cbz": KindZIP,
	"rar": KindRAR,
	"cbr": KindRAR,
	"7z":  Kind7Z,
	"cb7": Kind7Z,
	"pdf": KindPDF,

	"application/zip":               KindZIP,
	"application/x-cbz":             KindZIP,
	"application/vnd.comicbook+zip": KindZIP,
	"application/x-rar-compressed":  KindRAR,
	"application/vnd.rar":           KindRAR,
	"application/x-cbr":             KindRAR,
	"application/x-7z-compressed":   Kind7Z,
	"application/x-cb7":             Kind7Z,
	"application/pdf":               KindPDF,
}

// ParseKind resolves a format name, file extension, or MIME type to a Kind.
func ParseKind(s string) (Kind, error) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	if k, ok := kindAliases[key]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// DetectKind sniffs the container format from its magic bytes, falling back
// to the filename extension when the content is not recognised.
func DetectKind(data []byte, filename string) (Kind, error) {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if k, ok := kindAliases[m.String()]; ok {
			return k, nil
		}
	}

	if ext := path.Ext(filename); ext != "" {
		return ParseKind(ext)
	}
	return "", fmt.Errorf("%w: cannot detect format of %q", ErrUnsupportedFormat, filename)
}
