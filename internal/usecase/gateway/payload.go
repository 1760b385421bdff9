package gateway

import (
	"encoding/json"
	"strings"
)

type errorPayload struct {
	Error string `json:"error"`
}

// ErrorPayload renders err as the JSON error text returned instead of model output.
func ErrorPayload(err error) string {
	b, mErr := json.Marshal(errorPayload{Error: err.Error()})
	if mErr != nil {
		return `{"error":"unknown error"}`
	}
	return string(b)
}

// IsErrorPayload reports whether text is a gateway error payload.
func IsErrorPayload(text string) bool {
	_, ok := decodeError(text)
	return ok
}

// ErrorMessage returns the message of an error payload, or "" for model output.
func ErrorMessage(text string) string {
	msg, _ := decodeError(text)
	return msg
}

func decodeError(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, `{"error"`) {
		return "", false
	}
	var p map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &p); err != nil || len(p) != 1 {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(p["error"], &msg); err != nil {
		return "", false
	}
	return msg, true
}
