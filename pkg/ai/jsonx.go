package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnparsableResponse marks a completion that could not be decoded into
// the expected JSON shape. Callers treat it as recoverable: prior state is
// kept and the failure is reported distinctly from transport errors.
var ErrUnparsableResponse = errors.New("ai response not parseable as expected JSON")

// DecodeJSON extracts the JSON payload from a completion and unmarshals it
// into out. Models often wrap JSON in a fenced code block or surround it with
// prose; both are tolerated. A decode failure wraps ErrUnparsableResponse.
func DecodeJSON(completion string, out any) error {
	payload := extractJSON(completion)
	if payload == "" {
		return fmt.Errorf("%w: no JSON found", ErrUnparsableResponse)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}
	return nil
}

// extractJSON returns the most plausible JSON document inside text:
// a ```json fenced block if present, otherwise the outermost {...} or [...].
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if fenced := extractFenced(text); fenced != "" {
		return fenced
	}
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(text, pair[0])
		end := strings.LastIndexByte(text, pair[1])
		if start >= 0 && end > start {
			return strings.TrimSpace(text[start : end+1])
		}
	}
	return ""
}

func extractFenced(text string) string {
	idx := strings.Index(text, "```")
	if idx < 0 {
		return ""
	}
	rest := text[idx+3:]
	// Skip an optional language tag on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		tag := strings.TrimSpace(rest[:nl])
		if tag == "" || tag == "json" || tag == "JSON" {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}
