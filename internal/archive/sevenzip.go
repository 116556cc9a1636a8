package archive

import (
	"bytes"
	"fmt"

	"github.com/bodgit/sevenzip"
)

type sevenZipDecoder struct{}

func (sevenZipDecoder) walk(data []byte, w *walker) error {
	zr, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		name, ok := cleanName(f.Name)
		if !ok || !w.accepts(name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", ErrCorruptArchive, name, err)
		}
		err = w.add(name, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}

	return nil
}
