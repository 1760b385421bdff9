package domain

// TimestampLayout is the report timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

// DocumentResult holds the merged values of one document.
type DocumentResult struct {
	Document        string           `json:"document"`
	ExtractedValues []ExtractedValue `json:"extracted_values"`
}

// RunStats counts page-unit outcomes of one invocation.
type RunStats struct {
	Documents       int `json:"documents"`
	DocumentsFailed int `json:"documents_failed"`
	Pages           int `json:"pages"`
	Routed          int `json:"routed"`
	Excluded        int `json:"excluded"`
	Extracted       int `json:"extracted"`
	Failed          int `json:"failed"`
	Skipped         int `json:"skipped"`
}

// Report is the machine-readable output of a pipeline invocation.
type Report struct {
	RunID      string           `json:"run_id"`
	Timestamp  string           `json:"timestamp"`
	Mode       Mode             `json:"mode"`
	ExpertMode bool             `json:"expert_mode"`
	Documents  []DocumentResult `json:"documents"`
	Stats      RunStats         `json:"stats"`
}

// TotalValues returns the number of extracted values across documents.
func (r Report) TotalValues() int {
	n := 0
	for _, d := range r.Documents {
		n += len(d.ExtractedValues)
	}
	return n
}
