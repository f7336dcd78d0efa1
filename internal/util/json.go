package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Strategy names the step of the repair chain that produced parseable JSON
type Strategy string

const (
	StrategyStrict             Strategy = "strict"
	StrategyEscapeMarkupBraces Strategy = "escape-markup-braces"
	StrategyEscapeNewlines     Strategy = "escape-newlines"
)

// ErrNoJSONObject is returned when the text holds no '{' ... '}' span at all
var ErrNoJSONObject = errors.New("no JSON object found in response")

// Precompiled regex patterns (compiled once at package init)
var (
	fenceLineRegex = regexp.MustCompile("(?m)^[ \t]*```(?:json|JSON)?[ \t]*\r?\n?")
)

// RepairResult is the outcome of a successful RepairAndParse
type RepairResult struct {
	Data     json.RawMessage
	Strategy Strategy
}

// RepairError carries the original text and the last rewrite that was tried
// so both can be persisted for manual correction.
type RepairError struct {
	Original    string
	LastAttempt string
	Attempted   []Strategy
	Cause       error
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("unrecoverable JSON after %d attempts: %v", len(e.Attempted), e.Cause)
}

func (e *RepairError) Unwrap() error {
	return e.Cause
}

// RepairAndParse extracts the single JSON object embedded in a model response
// and parses it, falling back through a fixed chain of rewrites:
//
//  1. take the text from the first '{' to the last '}'
//  2. strip markdown fence lines
//  3. strict parse
//  4. escape markup braces, then escape raw newlines in strings, re-parsing
//     after each (the rewrites accumulate)
//
// Nothing beyond this chain is ever attempted.
func RepairAndParse(text string) (RepairResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return RepairResult{}, &RepairError{
			Original:    text,
			LastAttempt: text,
			Cause:       ErrNoJSONObject,
		}
	}

	candidate := stripFences(text[start : end+1])

	attempted := []Strategy{StrategyStrict}
	err := parseObject(candidate)
	if err == nil {
		return RepairResult{Data: json.RawMessage(candidate), Strategy: StrategyStrict}, nil
	}

	heuristics := []struct {
		strategy Strategy
		apply    func(string) string
	}{
		{StrategyEscapeMarkupBraces, EscapeMarkupBraces},
		{StrategyEscapeNewlines, SanitizeJSON},
	}

	for _, h := range heuristics {
		candidate = h.apply(candidate)
		attempted = append(attempted, h.strategy)
		if err = parseObject(candidate); err == nil {
			return RepairResult{Data: json.RawMessage(candidate), Strategy: h.strategy}, nil
		}
	}

	return RepairResult{}, &RepairError{
		Original:    text,
		LastAttempt: candidate,
		Attempted:   attempted,
		Cause:       err,
	}
}

// DecodeModelJSON runs RepairAndParse and decodes the recovered object into T
func DecodeModelJSON[T any](text string) (T, Strategy, error) {
	var out T
	res, err := RepairAndParse(text)
	if err != nil {
		return out, "", err
	}
	if err := json.Unmarshal(res.Data, &out); err != nil {
		return out, res.Strategy, fmt.Errorf("response JSON does not match expected shape: %w", err)
	}
	return out, res.Strategy, nil
}

func parseObject(s string) error {
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj)
}

func stripFences(s string) string {
	return strings.TrimSpace(fenceLineRegex.ReplaceAllString(s, ""))
}

// EscapeMarkupBraces doubles the backslash in front of '{' or '}' when the
// preceding run of backslashes is odd, turning the invalid escape "\{" into
// the literal "\\{". Runs that are already even are left alone.
func EscapeMarkupBraces(s string) string {
	var result strings.Builder
	result.Grow(len(s) + 16)

	run := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\\' {
			run++
			result.WriteByte(ch)
			continue
		}
		if (ch == '{' || ch == '}') && run%2 == 1 {
			result.WriteByte('\\')
		}
		run = 0
		result.WriteByte(ch)
	}

	return result.String()
}

// SanitizeJSON fixes common JSON issues from LLM responses
// Specifically handles unescaped newlines in string values
func SanitizeJSON(s string) string {
	var result strings.Builder
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if escaped {
			result.WriteByte(ch)
			escaped = false
			continue
		}

		if ch == '\\' {
			result.WriteByte(ch)
			escaped = true
			continue
		}

		if ch == '"' {
			result.WriteByte(ch)
			inString = !inString
			continue
		}

		// Replace literal newlines in strings with \n
		if inString && (ch == '\n' || ch == '\r') {
			result.WriteString("\\n")
			// Skip \r if followed by \n
			if ch == '\r' && i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			continue
		}

		result.WriteByte(ch)
	}

	return result.String()
}
