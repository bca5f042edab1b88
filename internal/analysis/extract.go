package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// Greedy: the span runs from the first '{' to the last '}'.
	objectPattern        = regexp.MustCompile(`(?s)\{.*\}`)
	leadingFencePattern  = regexp.MustCompile("^```(?:json|JSON)?[ \t]*\n?")
	trailingFencePattern = regexp.MustCompile("\n?```[ \t]*$")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

var ErrNoJSON = errors.New("no JSON object in response")

// ExtractJSON pulls the analysis object out of raw model output. It tolerates
// markdown fences, prose around the object, // comments and trailing commas.
func ExtractJSON(text string) (map[string]any, error) {
	text = stripFences(strings.TrimSpace(text))

	span := objectPattern.FindString(text)
	if span == "" {
		return nil, ErrNoJSON
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(span), &raw); err == nil {
		return raw, nil
	}
	if err := json.Unmarshal([]byte(cleanJSON(span)), &raw); err != nil {
		return nil, fmt.Errorf("parse JSON object: %w", err)
	}
	return raw, nil
}

func stripFences(text string) string {
	text = leadingFencePattern.ReplaceAllString(text, "")
	text = trailingFencePattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// stripLineComment drops a // comment that starts outside a string literal.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString, escaped := false, false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
