// Package schema defines the versioned shapes of the pipeline's intermediate
// artifacts and validates them at stage boundaries.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lamim/exambank/pkg/models"
)

// Artifact kinds written into the "schema" field
const (
	KindRaw       = "exambank.raw.v1"
	KindFiltered  = "exambank.filtered.v1"
	KindSolutions = "exambank.solutions.v1"
	KindRemoved   = "exambank.removed.v1"
	KindFailures  = "exambank.failures.v1"
	KindNodes     = "exambank.nodes.v1"
)

// Error describes an artifact that does not match what a stage expects
type Error struct {
	Path     string
	Expected []string
	Got      string
	Problems []string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid artifact %s", e.Path)
	if e.Got != "" || len(e.Expected) > 0 {
		fmt.Fprintf(&b, " (schema %q, expected one of %s)", e.Got, strings.Join(e.Expected, ", "))
	}
	if len(e.Problems) > 0 {
		shown := e.Problems
		if len(shown) > 5 {
			shown = shown[:5]
		}
		fmt.Fprintf(&b, ": %s", strings.Join(shown, "; "))
		if extra := len(e.Problems) - len(shown); extra > 0 {
			fmt.Fprintf(&b, "; and %d more", extra)
		}
	}
	return b.String()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadQuestionSet reads a question artifact and checks it against the kinds
// the calling stage accepts. An artifact without a schema field is accepted
// with a warning so hand-merged files keep working.
func LoadQuestionSet(path string, logger *slog.Logger, accepted ...string) (*models.QuestionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var set models.QuestionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, &Error{Path: path, Expected: accepted, Problems: []string{err.Error()}}
	}

	kind := set.Schema
	switch {
	case kind == "":
		logger.Warn("Artifact has no schema field, validating as expected kind",
			"path", path,
			"assumed", accepted[0])
		kind = accepted[0]
	case !slices.Contains(accepted, kind):
		return nil, &Error{Path: path, Expected: accepted, Got: kind}
	}

	if problems := CheckQuestionSet(&set, kind); len(problems) > 0 {
		return nil, &Error{Path: path, Expected: accepted, Got: set.Schema, Problems: problems}
	}

	return &set, nil
}

// CheckQuestionSet returns every problem that makes set invalid for kind
func CheckQuestionSet(set *models.QuestionSet, kind string) []string {
	var problems []string

	if len(set.Questions) == 0 {
		problems = append(problems, "questions: no questions")
	}

	if err := validate.Struct(set); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s: failed %q", fieldPath(fe.Namespace()), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	if kind == KindSolutions {
		problems = append(problems, checkSolutions(set)...)
	}

	return problems
}

func checkSolutions(set *models.QuestionSet) []string {
	var problems []string
	for qi, q := range set.Questions {
		if strings.TrimSpace(q.Title) == "" {
			problems = append(problems, fmt.Sprintf("questions[%d].title: missing", qi))
		}
		for pi, p := range q.Parts {
			if len(p.StepByStepGuideline) == 0 {
				problems = append(problems, fmt.Sprintf("questions[%d].parts[%d].stepByStepGuideline: empty", qi, pi))
			}
		}
	}
	return problems
}

// fieldPath drops the root type name from a validator namespace
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// LoadNodeSet reads a final node artifact in either JSON or YAML form
func LoadNodeSet(path string, decode func([]byte, any) error) (*models.NodeSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var set models.NodeSet
	if err := decode(data, &set); err != nil {
		return nil, &Error{Path: path, Expected: []string{KindNodes}, Problems: []string{err.Error()}}
	}
	if set.Schema != "" && set.Schema != KindNodes {
		return nil, &Error{Path: path, Expected: []string{KindNodes}, Got: set.Schema}
	}
	return &set, nil
}
