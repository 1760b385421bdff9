// Package report renders and persists pipeline reports.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/docscan/internal/domain"
)

// FilePrefix is the base name of persisted JSON reports.
const FilePrefix = "multi_doc_extracted_values"

// FileName returns the JSON report file name for a run.
func FileName(r domain.Report) string {
	if r.RunID == "" {
		return FilePrefix + ".json"
	}
	return fmt.Sprintf("%s_%s.json", FilePrefix, r.RunID)
}

// WriteJSON writes the report into dir and returns the file path.
func WriteJSON(dir string, r domain.Report) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	path := filepath.Join(dir, FileName(r))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Summary renders the human-readable run summary.
func Summary(r domain.Report) string {
	var b strings.Builder

	mode := string(r.Mode)
	if r.ExpertMode {
		mode += ", expert mode enabled"
	}
	fmt.Fprintf(&b, "Extraction completed for %d documents (mode: %s, %d values extracted):\n",
		len(r.Documents), mode, r.TotalValues())

	for _, doc := range r.Documents {
		fmt.Fprintf(&b, "\nDocument: %s (%d values extracted)\n", doc.Document, len(doc.ExtractedValues))
		for _, v := range doc.ExtractedValues {
			fmt.Fprintf(&b, "  • %s (p.%d): %s (confidence: %s)\n",
				v.Section, v.Page, v.Value.String(), percent(v.Confidence))
		}
	}

	if r.Stats.Failed > 0 || r.Stats.DocumentsFailed > 0 {
		fmt.Fprintf(&b, "\nFailures: %d pages, %d documents (see logs).\n",
			r.Stats.Failed, r.Stats.DocumentsFailed)
	}
	return b.String()
}

func percent(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}
