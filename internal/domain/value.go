package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// FieldValue holds either a scalar string or an ordered list of strings.
type FieldValue struct {
	scalar string
	list   []string
	isList bool
}

// Text creates a scalar value.
func Text(s string) FieldValue { return FieldValue{scalar: s} }

// List creates a multi-instance value.
func List(items ...string) FieldValue {
	cp := make([]string, len(items))
	copy(cp, items)
	return FieldValue{list: cp, isList: true}
}

// IsList reports whether the value holds several instances.
func (v FieldValue) IsList() bool { return v.isList }

// Items returns the list items, or the scalar as a single item.
func (v FieldValue) Items() []string {
	if v.isList {
		out := make([]string, len(v.list))
		copy(out, v.list)
		return out
	}
	return []string{v.scalar}
}

// IsEmpty reports whether nothing was extracted.
func (v FieldValue) IsEmpty() bool {
	if v.isList {
		for _, s := range v.list {
			if strings.TrimSpace(s) != "" {
				return false
			}
		}
		return true
	}
	return strings.TrimSpace(v.scalar) == ""
}

// String renders the value for summaries; list items are comma-joined.
func (v FieldValue) String() string {
	if v.isList {
		return strings.Join(v.list, ", ")
	}
	return v.scalar
}

// MarshalJSON emits a string or an array of strings.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.isList {
		items := v.list
		if items == nil {
			items = []string{}
		}
		return json.Marshal(items)
	}
	return json.Marshal(v.scalar)
}

// UnmarshalJSON accepts a string, an array, null or any scalar (kept as its literal text).
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*v = Text("")
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode value: %w", err)
		}
		*v = Text(s)
		return nil
	case data[0] == '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode value list: %w", err)
		}
		items := make([]string, 0, len(raw))
		for _, r := range raw {
			var s string
			if json.Unmarshal(r, &s) == nil {
				items = append(items, s)
				continue
			}
			items = append(items, string(bytes.TrimSpace(r)))
		}
		*v = List(items...)
		return nil
	default:
		*v = Text(string(data))
		return nil
	}
}

// ExtractedValue is one field value read from one page.
type ExtractedValue struct {
	Section    string     `json:"section"`
	Value      FieldValue `json:"value"`
	Confidence float64    `json:"confidence"`
	Page       int        `json:"page"`
	Document   string     `json:"-"`
}

// ClampConfidence bounds c to [0,1].
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
