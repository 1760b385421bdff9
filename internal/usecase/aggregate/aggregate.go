// Package aggregate merges per-page extraction results into one value per section.
package aggregate

import (
	"sort"

	"github.com/kailas-cloud/docscan/internal/domain"
)

// Merge keeps the highest-confidence value of each section. Input is
// ordered by page first, so on equal confidence the lowest page wins.
// Output follows each section's first appearance in that order.
func Merge(values []domain.ExtractedValue) []domain.ExtractedValue {
	sorted := make([]domain.ExtractedValue, len(values))
	copy(sorted, values)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Page < sorted[j].Page })

	best := make(map[string]int, len(sorted))
	out := make([]domain.ExtractedValue, 0, len(sorted))
	for _, v := range sorted {
		idx, ok := best[v.Section]
		if !ok {
			best[v.Section] = len(out)
			out = append(out, v)
			continue
		}
		if v.Confidence > out[idx].Confidence {
			out[idx] = v
		}
	}
	return out
}

// ByRequest orders merged values by the requested titles; sections that were
// not requested keep their relative order after them.
func ByRequest(values []domain.ExtractedValue, titles []string) []domain.ExtractedValue {
	rank := make(map[string]int, len(titles))
	for i, t := range titles {
		if _, ok := rank[t]; !ok {
			rank[t] = i
		}
	}
	pos := func(v domain.ExtractedValue) int {
		if r, ok := rank[v.Section]; ok {
			return r
		}
		return len(titles)
	}

	out := make([]domain.ExtractedValue, len(values))
	copy(out, values)
	sort.SliceStable(out, func(i, j int) bool { return pos(out[i]) < pos(out[j]) })
	return out
}

// Entry is the keyed form of one merged value.
type Entry struct {
	Value      domain.FieldValue `json:"value"`
	Confidence float64           `json:"confidence"`
	Page       int               `json:"page"`
}

// AsMap keys merged values by section.
func AsMap(values []domain.ExtractedValue) map[string]Entry {
	out := make(map[string]Entry, len(values))
	for _, v := range values {
		if _, ok := out[v.Section]; ok {
			continue
		}
		out[v.Section] = Entry{Value: v.Value, Confidence: v.Confidence, Page: v.Page}
	}
	return out
}

// FilterMinConfidence drops values whose confidence is not above minConfidence.
// A threshold <= 0 keeps everything.
func FilterMinConfidence(values []domain.ExtractedValue, minConfidence float64) []domain.ExtractedValue {
	if minConfidence <= 0 {
		return values
	}
	out := make([]domain.ExtractedValue, 0, len(values))
	for _, v := range values {
		if v.Confidence > minConfidence {
			out = append(out, v)
		}
	}
	return out
}
