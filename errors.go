package docscan

import "github.com/kailas-cloud/docscan/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrConfiguration     = domain.ErrConfiguration
	ErrModelUnavailable  = domain.ErrModelUnavailable
	ErrInvalidInput      = domain.ErrInvalidInput
	ErrUnsupportedFormat = domain.ErrUnsupportedFormat
	ErrDownload          = domain.ErrDownload
)
