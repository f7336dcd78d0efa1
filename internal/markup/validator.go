// Package markup reports likely mistakes in inline math spans. It is purely
// advisory: findings are logged for the operator and never block a write.
package markup

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lamim/exambank/pkg/models"
)

// Diagnostic is one problem found in a $...$ span
type Diagnostic struct {
	Path       string  `json:"path"`
	Span       string  `json:"span"`
	Message    string  `json:"message"`
	Suggestion *string `json:"suggestion,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Suggestion != nil {
		return fmt.Sprintf("%s: %s in $%s$ (try %s)", d.Path, d.Message, d.Span, *d.Suggestion)
	}
	return fmt.Sprintf("%s: %s in $%s$", d.Path, d.Message, d.Span)
}

// Validate walks an arbitrary decoded value (maps, slices, strings) and checks
// every inline math span it finds. Map keys are visited in sorted order so
// results are deterministic.
func Validate(value any) []Diagnostic {
	var diags []Diagnostic
	walk("", value, &diags)
	return diags
}

// ValidateValue converts a typed value to its JSON form and validates it, so
// paths use the JSON field names.
func ValidateValue(v any) ([]Diagnostic, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value for validation: %w", err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("failed to decode value for validation: %w", err)
	}
	return Validate(generic), nil
}

// ValidateNodes checks every text field of a node set
func ValidateNodes(nodes []models.Node) []Diagnostic {
	diags, err := ValidateValue(map[string]any{"nodes": nodes})
	if err != nil {
		// Node fields are plain strings, so the round trip cannot fail
		return nil
	}
	return diags
}

// ValidateString checks the inline math spans of a single string
func ValidateString(path, s string) []Diagnostic {
	var diags []Diagnostic
	for _, sp := range findSpans(s) {
		if sp.unterminated {
			diags = append(diags, Diagnostic{
				Path:    path,
				Span:    sp.text,
				Message: "unterminated inline math (missing closing $)",
			})
			continue
		}
		for _, f := range checkSpan(sp.text) {
			diags = append(diags, Diagnostic{
				Path:       path,
				Span:       sp.text,
				Message:    f.message,
				Suggestion: f.suggestion,
			})
		}
	}
	return diags
}

func walk(path string, value any, diags *[]Diagnostic) {
	switch v := value.(type) {
	case string:
		*diags = append(*diags, ValidateString(path, v)...)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if path != "" {
				child = path + "." + k
			}
			walk(child, v[k], diags)
		}
	case []any:
		for i, item := range v {
			walk(fmt.Sprintf("%s[%d]", path, i), item, diags)
		}
	case []string:
		for i, item := range v {
			walk(fmt.Sprintf("%s[%d]", path, i), item, diags)
		}
	}
}

type span struct {
	text         string
	unterminated bool
}

// findSpans returns the contents of single-dollar spans. Display blocks
// ($$...$$) and escaped dollars (\$) are skipped.
func findSpans(s string) []span {
	var spans []span
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == '$':
			i++
		case s[i] == '$' && i+1 < len(s) && s[i+1] == '$':
			end := strings.Index(s[i+2:], "$$")
			if end == -1 {
				return spans
			}
			i += 2 + end + 1
		case s[i] == '$':
			end := closingDollar(s, i+1)
			if end == -1 {
				return append(spans, span{text: s[i+1:], unterminated: true})
			}
			spans = append(spans, span{text: s[i+1 : end]})
			i = end
		}
	}
	return spans
}

func closingDollar(s string, from int) int {
	for j := from; j < len(s); j++ {
		if s[j] == '\\' {
			j++
			continue
		}
		if s[j] == '$' {
			return j
		}
	}
	return -1
}
