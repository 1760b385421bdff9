package docscan

import "github.com/kailas-cloud/docscan/internal/domain"

// Report is the result of one extraction run.
type Report = domain.Report

// DocumentResult holds the values extracted from one document.
type DocumentResult = domain.DocumentResult

// ExtractedValue is one section value found on a page.
type ExtractedValue = domain.ExtractedValue

// Section is a detected section title.
type Section = domain.Section

// Titles returns the bare titles of sections.
func Titles(sections []Section) []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.Title
	}
	return out
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}

// ModeInfo describes the configured backend.
type ModeInfo struct {
	Mode     string
	Backend  string
	Server   string
	Model    string
	PoolSize int
}
