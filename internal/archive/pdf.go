package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/JaimeStill/document-context/pkg/document"
	docimage "github.com/JaimeStill/document-context/pkg/image"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const pdfContentType = "application/pdf"

type pdfDecoder struct {
	renderer docimage.Renderer
}

type renderTask struct {
	pageNum int
	data    []byte
	err     error
}

// walk rasterizes every page on a bounded worker pool, then hands the pages
// to the walker in document order. Page names are zero-padded page numbers
// so the derived order key equals the page number.
func (d pdfDecoder) walk(data []byte, w *walker) error {
	count, err := api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	if count == 0 {
		return nil
	}

	if w.cfg.MaxFiles > 0 && count > w.cfg.MaxFiles {
		return fmt.Errorf("%w: %d pages, limit %d", ErrTooManyPages, count, w.cfg.MaxFiles)
	}

	dir, err := os.MkdirTemp("", "page-ingest-pdf-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(src, data, 0600); err != nil {
		return fmt.Errorf("write temp pdf: %w", err)
	}

	pages, err := d.render(w.ctx, src, count)
	if err != nil {
		return err
	}

	for n, img := range pages {
		if err := w.add(fmt.Sprintf("%05d.png", n+1), bytes.NewReader(img)); err != nil {
			return err
		}
	}

	return nil
}

func (d pdfDecoder) render(ctx context.Context, src string, count int) ([][]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan int, count)
	results := make(chan renderTask, count)

	var wg sync.WaitGroup
	for range renderWorkerCount(count) {
		wg.Go(func() {
			d.renderWorker(ctx, src, tasks, results)
		})
	}

	for n := 1; n <= count; n++ {
		tasks <- n
	}
	close(tasks)

	go func() {
		wg.Wait()
		close(results)
	}()

	pages := make([][]byte, count)
	var first error
	for task := range results {
		if task.err != nil {
			if first == nil {
				first = task.err
				cancel()
			}
			continue
		}
		pages[task.pageNum-1] = task.data
	}

	if first != nil {
		return nil, first
	}
	return pages, nil
}

func (d pdfDecoder) renderWorker(ctx context.Context, src string, tasks <-chan int, results chan<- renderTask) {
	doc, err := document.Open(src, pdfContentType)
	if err != nil {
		for pageNum := range tasks {
			results <- renderTask{
				pageNum: pageNum,
				err:     fmt.Errorf("%w: %v", ErrCorruptArchive, err),
			}
		}
		return
	}
	defer doc.Close()

	for pageNum := range tasks {
		if err := ctx.Err(); err != nil {
			results <- renderTask{pageNum: pageNum, err: err}
			continue
		}

		data, err := d.renderPage(doc, pageNum)
		results <- renderTask{pageNum: pageNum, data: data, err: err}
	}
}

func (d pdfDecoder) renderPage(doc document.Document, pageNum int) ([]byte, error) {
	page, err := doc.ExtractPage(pageNum)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrCorruptArchive, pageNum, err)
	}

	img, err := page.ToImage(d.renderer, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: render page %d: %v", ErrCorruptArchive, pageNum, err)
	}
	return img, nil
}

func renderWorkerCount(pageCount int) int {
	return max(min(runtime.NumCPU(), pageCount), 1)
}
