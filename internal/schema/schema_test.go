package schema

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const validRaw = `{
  "schema": "exambank.raw.v1",
  "questions": [
    {"question": "Q1", "parts": [{"label": "a", "text": "t", "answer": "1"}]}
  ]
}`

func TestLoadQuestionSet_Valid(t *testing.T) {
	set, err := LoadQuestionSet(writeFile(t, validRaw), discard(), KindRaw, KindFiltered)
	require.NoError(t, err)
	assert.Equal(t, KindRaw, set.Schema)
	assert.Len(t, set.Questions, 1)
}

func TestLoadQuestionSet_MissingSchemaIsAccepted(t *testing.T) {
	content := `{"questions": [{"question": "Q1", "parts": [{"label": "a", "text": "t"}]}]}`
	set, err := LoadQuestionSet(writeFile(t, content), discard(), KindFiltered)
	require.NoError(t, err)
	assert.Empty(t, set.Schema)
}

func TestLoadQuestionSet_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		accepted []string
		problem  string
	}{
		{
			name:     "wrong kind",
			content:  validRaw,
			accepted: []string{KindSolutions},
		},
		{
			name:     "not json",
			content:  "questions: []",
			accepted: []string{KindRaw},
		},
		{
			name:     "no questions",
			content:  `{"schema": "exambank.raw.v1", "questions": []}`,
			accepted: []string{KindRaw},
			problem:  "questions: no questions",
		},
		{
			name:     "part without parts",
			content:  `{"schema": "exambank.raw.v1", "questions": [{"question": "Q", "parts": []}]}`,
			accepted: []string{KindRaw},
			problem:  `questions[0].parts: failed "min"`,
		},
		{
			name:     "part missing label",
			content:  `{"schema": "exambank.raw.v1", "questions": [{"question": "Q", "parts": [{"text": "t"}]}]}`,
			accepted: []string{KindRaw},
			problem:  `questions[0].parts[0].label: failed "required"`,
		},
		{
			name:     "solution missing title and guideline",
			content:  `{"schema": "exambank.solutions.v1", "questions": [{"question": "Q", "parts": [{"label": "a", "text": "t"}]}]}`,
			accepted: []string{KindSolutions},
			problem:  "questions[0].title: missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadQuestionSet(writeFile(t, tt.content), discard(), tt.accepted...)
			require.Error(t, err)

			var se *Error
			require.True(t, errors.As(err, &se), "expected *schema.Error, got %T", err)
			assert.Equal(t, tt.accepted, se.Expected)
			if tt.problem != "" {
				assert.Contains(t, se.Problems, tt.problem)
			}
		})
	}
}

func TestLoadQuestionSet_MissingFile(t *testing.T) {
	_, err := LoadQuestionSet(filepath.Join(t.TempDir(), "nope.json"), discard(), KindRaw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCheckQuestionSet_Solutions(t *testing.T) {
	content := `{"schema": "exambank.solutions.v1", "questions": [
		{"question": "Q", "title": "T", "parts": [{"label": "a", "text": "t", "stepByStepGuideline": ["s1"]}]}
	]}`
	_, err := LoadQuestionSet(writeFile(t, content), discard(), KindSolutions)
	assert.NoError(t, err)
}

func TestError_Message(t *testing.T) {
	err := &Error{Path: "x.json", Expected: []string{KindRaw}, Got: KindNodes}
	assert.Contains(t, err.Error(), "x.json")
	assert.Contains(t, err.Error(), KindNodes)

	many := &Error{Path: "y.json", Problems: []string{"1", "2", "3", "4", "5", "6", "7"}}
	assert.Contains(t, many.Error(), "and 2 more")
}

func TestLoadNodeSet(t *testing.T) {
	path := writeFile(t, `{"schema": "exambank.nodes.v1", "topicId": "alg", "nodes": [{"id": "alg-node-1", "nodeNumber": 1}]}`)
	set, err := LoadNodeSet(path, json.Unmarshal)
	require.NoError(t, err)
	assert.Equal(t, "alg", set.TopicID)
	require.Len(t, set.Nodes, 1)

	bad := writeFile(t, `{"schema": "exambank.raw.v1", "nodes": []}`)
	_, err = LoadNodeSet(bad, json.Unmarshal)
	var se *Error
	assert.True(t, errors.As(err, &se))
}
