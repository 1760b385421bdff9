package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration signals an unusable backend configuration.
	ErrConfiguration = errors.New("backend configuration error")
	// ErrModelUnavailable signals that the local model could not be loaded.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrTransientCall signals a failed model call (timeout, transport, non-2xx).
	ErrTransientCall = errors.New("model call failed")
	// ErrInvalidInput signals a request the pipeline cannot act on.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFormat signals a file that is neither a PDF nor a supported image.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrRasterize signals a PDF page that could not be rendered.
	ErrRasterize = errors.New("rasterize failed")
	// ErrDownload signals a remote document that could not be fetched.
	ErrDownload = errors.New("download failed")
)

// CallError carries the HTTP status of a failed remote model call.
type CallError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *CallError) Error() string {
	msg := fmt.Sprintf("API error (code %d): %s", e.StatusCode, e.Body)
	if e.StatusCode == 404 && e.URL != "" {
		msg += fmt.Sprintf(" (URL: %s)", e.URL)
	}
	return msg
}

func (e *CallError) Unwrap() error { return ErrTransientCall }

// NewCallError creates a CallError.
func NewCallError(status int, body, url string) error {
	return &CallError{StatusCode: status, Body: body, URL: url}
}
