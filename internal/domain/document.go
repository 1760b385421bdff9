package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Document is one submitted file expanded into pages.
type Document struct {
	Name  string // base name, used in reports
	Path  string // local path after download
	Pages []Page
}

// Source is a localized document whose pages are rendered on demand.
type Source struct {
	Name  string
	Path  string
	Pages int
}

// Page is one page of a document. Index is 1-based.
type Page struct {
	Document  string
	Index     int
	ImagePath string
	Owned     bool // ImagePath is a temp artifact the pipeline must delete
}

// Key returns a stable identifier for logs and unit results.
func (p Page) Key() string {
	return fmt.Sprintf("%s#%d", p.Document, p.Index)
}

// SectionRequest is an ordered set of unique section titles.
type SectionRequest struct {
	titles []string
}

// NewSectionRequest builds a SectionRequest; blanks are dropped and the first occurrence wins.
func NewSectionRequest(titles ...string) SectionRequest {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return SectionRequest{titles: out}
}

// Titles returns the titles in insertion order.
func (r SectionRequest) Titles() []string {
	out := make([]string, len(r.titles))
	copy(out, r.titles)
	return out
}

// Len returns the number of titles.
func (r SectionRequest) Len() int { return len(r.titles) }

// Empty reports whether no titles were requested.
func (r SectionRequest) Empty() bool { return len(r.titles) == 0 }

// Merge appends titles not already present.
func (r SectionRequest) Merge(titles ...string) SectionRequest {
	return NewSectionRequest(append(r.Titles(), titles...)...)
}

// SplitTitles splits manual input on commas and newlines.
func SplitTitles(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Supported image extensions; anything else that is not a PDF is rejected.
var imageExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// IsPDF reports whether path has a PDF extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// ImageMIME returns the MIME type for a supported image extension.
func ImageMIME(path string) (string, bool) {
	m, ok := imageExts[strings.ToLower(filepath.Ext(path))]
	return m, ok
}

// IsURL reports whether ref is an http(s) URL rather than a local path.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
