package parser

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

var (
	fencePattern   = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\\n?(.*?)\\n?```$")
	bareKeyPattern = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

// strategy is one recovery attempt. transform rewrites the cleaned text
// before it is handed to the JSON decoder.
type strategy struct {
	name      string
	transform func(string) string
}

var strategies = []strategy{
	{name: "as-is", transform: func(s string) string { return s }},
	{name: "single-quotes", transform: NormalizeQuotes},
	{name: "bare-keys", transform: func(s string) string { return QuoteBareKeys(NormalizeQuotes(s)) }},
}

// ParseStructured decodes model output into T, salvaging common formatting
// mistakes. It never fails: when every strategy is rejected def is returned.
func ParseStructured[T any](text string, def T) T {
	cleaned := ExtractJSON(StripCodeFence(text))

	for _, s := range strategies {
		var out T
		if err := json.Unmarshal([]byte(s.transform(cleaned)), &out); err == nil {
			if s.name != "as-is" {
				slog.Debug("Recovered structured output", "strategy", s.name)
			}
			return out
		}
	}

	slog.Warn("Failed to parse structured output, using default", "raw", text, "cleaned", cleaned)
	return def
}

// StripCodeFence removes a surrounding ```lang ... ``` block.
func StripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(t); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// ExtractJSON trims text to the span from the first '[' or '{' to the last
// matching closing bracket. Text without either is returned unchanged.
func ExtractJSON(text string) string {
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return text
	}
	closer := "]"
	if text[start] == '{' {
		closer = "}"
	}
	end := strings.LastIndex(text, closer)
	if end < start {
		return text[start:]
	}
	return text[start : end+1]
}

// NormalizeQuotes turns single-quoted strings into double-quoted ones.
func NormalizeQuotes(text string) string {
	return strings.ReplaceAll(text, "'", `"`)
}

// QuoteBareKeys wraps unquoted object keys in double quotes.
func QuoteBareKeys(text string) string {
	return bareKeyPattern.ReplaceAllString(text, `$1"$2":`)
}
