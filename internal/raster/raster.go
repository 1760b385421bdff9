// Package raster turns document references into page images.
package raster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/domain"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultDPI      = 300
	DefaultPdftoppm = "pdftoppm"
)

// Config controls rendering.
type Config struct {
	DPI      int
	Pdftoppm string // binary name or path
}

// PageCounter returns the number of pages of a PDF file.
type PageCounter func(path string) (int, error)

// Rasterizer renders PDFs with pdftoppm and fetches remote documents.
type Rasterizer struct {
	cfg        Config
	runner     Runner
	countPages PageCounter
	fetcher    *Downloader
	logger     *zap.Logger
}

// New creates a Rasterizer. A nil runner falls back to ExecRunner.
func New(cfg Config, runner Runner, fetcher *Downloader, logger *zap.Logger) *Rasterizer {
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = DefaultPdftoppm
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if fetcher == nil {
		fetcher = NewDownloader(0)
	}
	return &Rasterizer{
		cfg:        cfg,
		runner:     runner,
		countPages: PDFPageCount,
		fetcher:    fetcher,
		logger:     logger,
	}
}

// WithPageCounter replaces the PDF page counter.
func (r *Rasterizer) WithPageCounter(fn PageCounter) *Rasterizer {
	r.countPages = fn
	return r
}

// PDFPageCount reads and validates the PDF with pdfcpu.
func PDFPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx.PageCount, nil
}

// RenderPages renders up to limit pages (0 = all) of pdfPath into dir and
// returns the PNG paths in page order.
func (r *Rasterizer) RenderPages(ctx context.Context, pdfPath, dir string, limit int) ([]string, error) {
	count, err := r.countPages(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrRasterize, filepath.Base(pdfPath), err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s has no pages", domain.ErrRasterize, filepath.Base(pdfPath))
	}
	last := count
	if limit > 0 && limit < last {
		last = limit
	}

	prefix := filepath.Join(dir, "page")
	// pdftoppm -r 300 -png -f 1 -l N <in.pdf> <dir/page>
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm,
		"-r", strconv.Itoa(r.cfg.DPI), "-png",
		"-f", "1", "-l", strconv.Itoa(last),
		pdfPath, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: pdftoppm: %w: %s", domain.ErrRasterize, err, strings.TrimSpace(string(errb)))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: pdftoppm produced no images", domain.ErrRasterize)
	}
	sortByPageNumber(matches)
	if len(matches) > last {
		matches = matches[:last]
	}

	r.logger.Debug("PDF rasterized",
		zap.String("document", filepath.Base(pdfPath)),
		zap.Int("page_count", count),
		zap.Int("rendered", len(matches)),
		zap.Int("dpi", r.cfg.DPI),
	)
	return matches, nil
}

// RenderPage renders one 1-based page of pdfPath into dir.
func (r *Rasterizer) RenderPage(ctx context.Context, pdfPath string, page int, dir string) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("%w: page %d out of range", domain.ErrRasterize, page)
	}
	count, err := r.countPages(pdfPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrRasterize, filepath.Base(pdfPath), err)
	}
	if page > count {
		return "", fmt.Errorf("%w: page %d out of range (%d pages)", domain.ErrRasterize, page, count)
	}

	prefix := filepath.Join(dir, fmt.Sprintf("page-%d", page))
	n := strconv.Itoa(page)
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm,
		"-r", strconv.Itoa(r.cfg.DPI), "-png",
		"-f", n, "-l", n, "-singlefile",
		pdfPath, prefix,
	)
	if err != nil {
		return "", fmt.Errorf("%w: pdftoppm: %w: %s", domain.ErrRasterize, err, strings.TrimSpace(string(errb)))
	}

	out := prefix + ".png"
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("%w: pdftoppm produced no image: %w", domain.ErrRasterize, err)
	}
	return out, nil
}

// Expand resolves ref (a path or URL) into a Document whose pages are ready
// for the model. Artifacts are written under dir; limit caps PDF pages (0 = all).
func (r *Rasterizer) Expand(ctx context.Context, ref, dir string, limit int) (domain.Document, error) {
	path, downloaded, err := r.localize(ctx, ref, dir)
	if err != nil {
		return domain.Document{}, err
	}

	doc := domain.Document{Name: displayName(ref, path), Path: path}

	if domain.IsPDF(path) {
		docDir, err := os.MkdirTemp(dir, "doc-*")
		if err != nil {
			return domain.Document{}, fmt.Errorf("%w: create page dir: %w", domain.ErrRasterize, err)
		}
		images, err := r.RenderPages(ctx, path, docDir, limit)
		if err != nil {
			return domain.Document{}, err
		}
		for i, img := range images {
			doc.Pages = append(doc.Pages, domain.Page{
				Document:  doc.Name,
				Index:     i + 1,
				ImagePath: img,
				Owned:     true,
			})
		}
		return doc, nil
	}

	if _, ok := domain.ImageMIME(path); ok {
		if _, err := os.Stat(path); err != nil {
			return domain.Document{}, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, filepath.Base(path), err)
		}
		doc.Pages = []domain.Page{{Document: doc.Name, Index: 1, ImagePath: path, Owned: downloaded}}
		return doc, nil
	}

	return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Base(path))
}

// Resolve localizes ref and counts its pages without rendering any.
// An image is one page; limit caps the PDF page count (0 = all).
func (r *Rasterizer) Resolve(ctx context.Context, ref, dir string, limit int) (domain.Source, error) {
	path, _, err := r.localize(ctx, ref, dir)
	if err != nil {
		return domain.Source{}, err
	}
	src := domain.Source{Name: displayName(ref, path), Path: path}

	switch {
	case domain.IsPDF(path):
		count, err := r.countPages(path)
		if err != nil {
			return domain.Source{}, fmt.Errorf("%w: %s: %w", domain.ErrRasterize, filepath.Base(path), err)
		}
		if count == 0 {
			return domain.Source{}, fmt.Errorf("%w: %s has no pages", domain.ErrRasterize, filepath.Base(path))
		}
		if limit > 0 && limit < count {
			count = limit
		}
		src.Pages = count
	default:
		if _, ok := domain.ImageMIME(path); !ok {
			return domain.Source{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Base(path))
		}
		if _, err := os.Stat(path); err != nil {
			return domain.Source{}, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, filepath.Base(path), err)
		}
		src.Pages = 1
	}
	return src, nil
}

// localize downloads a URL ref into dir; a path is returned as is.
func (r *Rasterizer) localize(ctx context.Context, ref, dir string) (path string, downloaded bool, err error) {
	if !domain.IsURL(ref) {
		return ref, false, nil
	}
	p, err := r.fetcher.Fetch(ctx, ref, dir)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

func displayName(ref, path string) string {
	if domain.IsURL(ref) {
		if name := urlBase(ref); name != "" {
			return name
		}
	}
	return filepath.Base(path)
}

// sortByPageNumber orders prefix-N.png paths numerically; pdftoppm pads
// numbers by page count, so lexical order only works within one width.
func sortByPageNumber(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		i := strings.LastIndex(base, "-")
		n, err := strconv.Atoi(base[i+1:])
		if err != nil {
			return 0
		}
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}
