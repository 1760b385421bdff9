// Package parse recovers JSON payloads from free-form model output.
package parse

import (
	"encoding/json"
	"strings"
)

// Kind tags how much of a model response could be recovered.
type Kind int

// Parse outcomes.
const (
	Ok       Kind = iota // JSON object decoded
	Fallback             // JSON failed; plain lines recovered
	Failed               // nothing usable
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "ok"
	case Fallback:
		return "fallback"
	default:
		return "failed"
	}
}

// Outcome is the tagged result of parsing one response.
type Outcome struct {
	Kind    Kind
	Object  map[string]json.RawMessage // Ok only
	Records []json.RawMessage          // Ok only; elements of Object[key]
	Lines   []string                   // Fallback only
}

const fence = "```"

// JSON extracts the object from raw and returns the array stored under key.
// It never panics and never returns an error.
func JSON(raw, key string) Outcome {
	text := strings.TrimSpace(raw)
	candidate := candidateJSON(text)

	var obj map[string]json.RawMessage
	if candidate != "" && json.Unmarshal([]byte(candidate), &obj) == nil && obj != nil {
		return Outcome{Kind: Ok, Object: obj, Records: records(obj[key])}
	}

	lines := fallbackLines(text)
	if len(lines) == 0 {
		return Outcome{Kind: Failed}
	}
	return Outcome{Kind: Fallback, Lines: lines}
}

// candidateJSON strips code fences and surrounding prose.
func candidateJSON(text string) string {
	s := text
	switch {
	case strings.Contains(s, fence+"json"):
		s = between(s, fence+"json")
	case strings.Contains(s, fence):
		s = between(s, fence)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

// between returns the text after the first opening marker up to the next fence.
func between(s, open string) string {
	_, after, _ := strings.Cut(s, open)
	body, _, _ := strings.Cut(after, fence)
	return strings.TrimSpace(body)
}

func records(v json.RawMessage) []json.RawMessage {
	if len(v) == 0 {
		return []json.RawMessage{}
	}
	var out []json.RawMessage
	if err := json.Unmarshal(v, &out); err != nil || out == nil {
		return []json.RawMessage{}
	}
	return out
}

func fallbackLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "{") || strings.HasPrefix(line, "}") {
			continue
		}
		out = append(out, line)
	}
	return out
}
