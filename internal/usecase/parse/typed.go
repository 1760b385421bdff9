package parse

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/domain"
	"github.com/kailas-cloud/docscan/internal/logger"
	"github.com/kailas-cloud/docscan/internal/metrics"
)

// Payload keys of the two model response schemas.
const (
	KeyValues   = "extracted_values"
	KeySections = "sections"
)

type valueRecord struct {
	Section    string             `json:"section"`
	Value      *domain.FieldValue `json:"value"`
	Confidence json.RawMessage    `json:"confidence"`
}

// Values decodes an extraction response. Fallback and Failed outcomes yield an empty list.
func Values(ctx context.Context, raw string) ([]domain.ExtractedValue, Kind) {
	out := JSON(raw, KeyValues)
	metrics.ParseOutcomesTotal.WithLabelValues(KeyValues, out.Kind.String()).Inc()

	values := make([]domain.ExtractedValue, 0, len(out.Records))
	if out.Kind != Ok {
		logger.FromContext(ctx).Warn("Extraction response is not JSON",
			zap.Stringer("outcome", out.Kind),
			zap.Int("raw_len", len(raw)),
		)
		return values, out.Kind
	}

	schema, _, err := schemas()
	for i, rec := range out.Records {
		if err == nil {
			if vErr := validateRecord(schema, rec); vErr != nil {
				dropRecord(ctx, KeyValues, i, vErr)
				continue
			}
		}
		var r valueRecord
		if dErr := json.Unmarshal(rec, &r); dErr != nil {
			dropRecord(ctx, KeyValues, i, dErr)
			continue
		}
		v := domain.ExtractedValue{
			Section:    strings.TrimSpace(r.Section),
			Value:      domain.Text(""),
			Confidence: domain.ClampConfidence(confidence(r.Confidence)),
		}
		if r.Value != nil {
			v.Value = *r.Value
		}
		if v.Section == "" {
			dropRecord(ctx, KeyValues, i, errBlankSection)
			continue
		}
		values = append(values, v)
	}
	return values, out.Kind
}

type sectionRecord struct {
	Title string   `json:"title"`
	Level *float64 `json:"level"`
	Type  string   `json:"type"`
}

// Sections decodes a detection response. On Fallback every plain line becomes a level-1 section.
func Sections(ctx context.Context, raw string) ([]domain.Section, Kind) {
	out := JSON(raw, KeySections)
	metrics.ParseOutcomesTotal.WithLabelValues(KeySections, out.Kind.String()).Inc()

	switch out.Kind {
	case Fallback:
		logger.FromContext(ctx).Warn("Section response is not JSON, using line fallback",
			zap.Int("lines", len(out.Lines)),
		)
		sections := make([]domain.Section, 0, len(out.Lines))
		for _, line := range out.Lines {
			sections = append(sections, domain.Section{Title: line, Level: 1, Type: domain.SectionTypeSection})
		}
		return sections, Fallback
	case Failed:
		return []domain.Section{}, Failed
	}

	_, schema, err := schemas()
	sections := make([]domain.Section, 0, len(out.Records))
	for i, rec := range out.Records {
		if err == nil {
			if vErr := validateRecord(schema, rec); vErr != nil {
				dropRecord(ctx, KeySections, i, vErr)
				continue
			}
		}
		var r sectionRecord
		if dErr := json.Unmarshal(rec, &r); dErr != nil {
			dropRecord(ctx, KeySections, i, dErr)
			continue
		}
		s := domain.Section{Title: strings.TrimSpace(r.Title), Level: 1, Type: domain.SectionTypeSection}
		if s.Title == "" {
			dropRecord(ctx, KeySections, i, errBlankSection)
			continue
		}
		if r.Level != nil && *r.Level >= 1 {
			s.Level = int(*r.Level)
		}
		if strings.EqualFold(strings.TrimSpace(r.Type), domain.SectionTypeHeader) {
			s.Type = domain.SectionTypeHeader
		}
		sections = append(sections, s)
	}
	return sections, Ok
}

// confidence reads a number, a numeric string or nothing (0).
func confidence(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return f
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if f > 1 {
				f /= 100
			}
			return f
		}
	}
	return 0
}

func dropRecord(ctx context.Context, key string, idx int, err error) {
	logger.FromContext(ctx).Warn("Dropping invalid model record",
		zap.String("key", key),
		zap.Int("index", idx),
		zap.Error(err),
	)
}
