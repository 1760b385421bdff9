package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/docscan/internal/domain"
	"github.com/kailas-cloud/docscan/internal/usecase/router"
)

// fakeExpander creates one owned PNG per page under dir.
type fakeExpander struct {
	pages map[string]int   // ref -> page count
	errs  map[string]error // ref -> expand error

	mu      sync.Mutex
	created []string
}

func (f *fakeExpander) Expand(_ context.Context, ref, dir string, _ int) (domain.Document, error) {
	if err := f.errs[ref]; err != nil {
		return domain.Document{}, err
	}
	n, ok := f.pages[ref]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ref)
	}
	doc := domain.Document{Name: ref, Path: ref}
	for i := 1; i <= n; i++ {
		img := filepath.Join(dir, fmt.Sprintf("%s-%d.png", ref, i))
		if err := os.WriteFile(img, []byte("png"), 0o600); err != nil {
			return domain.Document{}, err
		}
		f.mu.Lock()
		f.created = append(f.created, img)
		f.mu.Unlock()
		doc.Pages = append(doc.Pages, domain.Page{Document: ref, Index: i, ImagePath: img, Owned: true})
	}
	return doc, nil
}

// fakeRouter excludes pages whose image name contains one of exclude.
type fakeRouter struct {
	exclude   []string
	panicOn   string
	callCount atomic.Int32
}

func (f *fakeRouter) ShouldProcess(_ context.Context, imagePath, _, _ string) (bool, router.Reason) {
	f.callCount.Add(1)
	base := filepath.Base(imagePath)
	if f.panicOn != "" && strings.Contains(base, f.panicOn) {
		panic("router exploded")
	}
	for _, e := range f.exclude {
		if strings.Contains(base, e) {
			return false, router.ReasonModel
		}
	}
	return true, router.ReasonModel
}

// fakeExtractor answers per image base name and tracks concurrency.
type fakeExtractor struct {
	values  map[string][]domain.ExtractedValue
	panicOn string
	errOn   string
	delay   time.Duration

	callCount atomic.Int32
	inFlight  atomic.Int32
	maxSeen   atomic.Int32

	mu       sync.Mutex
	existing []bool // whether the image existed when extraction ran
}

func (f *fakeExtractor) ExtractPage(
	_ context.Context, imagePath string, _ []string, _ string,
) ([]domain.ExtractedValue, error) {
	f.callCount.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxSeen.Load()
		if n <= cur || f.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}

	_, statErr := os.Stat(imagePath)
	f.mu.Lock()
	f.existing = append(f.existing, statErr == nil)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	base := filepath.Base(imagePath)
	if f.panicOn != "" && base == f.panicOn {
		panic("extractor exploded")
	}
	if f.errOn != "" && base == f.errOn {
		return []domain.ExtractedValue{}, fmt.Errorf("%w: boom", domain.ErrTransientCall)
	}
	return f.values[base], nil
}

type fakeReady struct {
	err       error
	callCount int
}

func (f *fakeReady) Ready(context.Context) error {
	f.callCount++
	return f.err
}

func ev(section, value string, conf float64) domain.ExtractedValue {
	return domain.ExtractedValue{Section: section, Value: domain.Text(value), Confidence: conf}
}
