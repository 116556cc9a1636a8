package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/nwaples/rardecode"
)

type rarDecoder struct{}

func (rarDecoder) walk(data []byte, w *walker) error {
	rr, err := rardecode.NewReader(bytes.NewReader(data), "")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	for {
		header, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptArchive, err)
		}

		if header.IsDir {
			continue
		}

		name, ok := cleanName(header.Name)
		if !ok || !w.accepts(name) {
			continue
		}

		if err := w.add(name, rr); err != nil {
			return err
		}
	}
}
