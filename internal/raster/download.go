package raster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/docscan/internal/domain"
)

// Download limits.
const (
	DefaultDownloadTimeout  = 30 * time.Second
	DefaultMaxDownloadBytes = 64 << 20
)

// Downloader fetches remote documents into a local directory.
type Downloader struct {
	client   *http.Client
	maxBytes int64
}

// NewDownloader creates a Downloader; timeout <= 0 uses DefaultDownloadTimeout.
func NewDownloader(timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	return &Downloader{client: &http.Client{Timeout: timeout}, maxBytes: DefaultMaxDownloadBytes}
}

// WithMaxBytes caps the size of a downloaded document; n <= 0 keeps the default.
func (d *Downloader) WithMaxBytes(n int64) *Downloader {
	if n > 0 {
		d.maxBytes = n
	}
	return d
}

// Fetch downloads rawURL into dir as download_<uuid><ext> and returns the path.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDownload, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDownload, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %s: status %d", domain.ErrDownload, rawURL, resp.StatusCode)
	}

	ext := extensionFor(rawURL, resp.Header.Get("Content-Type"))
	dst := filepath.Join(dir, "download_"+uuid.New().String()+ext)
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("%w: create file: %w", domain.ErrDownload, err)
	}
	// читаем на байт больше лимита, чтобы отличить ровно-лимит от превышения
	n, err := io.Copy(f, io.LimitReader(resp.Body, d.maxBytes+1))
	if err == nil && n > d.maxBytes {
		err = fmt.Errorf("%w: larger than %d bytes", errTooLarge, d.maxBytes)
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("%w: read body: %w", domain.ErrDownload, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("%w: close file: %w", domain.ErrDownload, err)
	}
	return dst, nil
}

var errTooLarge = errors.New("document too large")

// extensionFor picks a file extension from the URL path, then the content
// type. Unknown payloads are treated as JPEG images.
func extensionFor(rawURL, contentType string) string {
	if name := urlBase(rawURL); name != "" {
		ext := strings.ToLower(path.Ext(name))
		if ext == ".pdf" {
			return ext
		}
		if _, ok := domain.ImageMIME(name); ok {
			return ext
		}
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "application/pdf":
			return ".pdf"
		case "image/png":
			return ".png"
		case "image/webp":
			return ".webp"
		case "image/gif":
			return ".gif"
		case "image/tiff":
			return ".tiff"
		}
	}
	return ".jpg"
}

func urlBase(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
