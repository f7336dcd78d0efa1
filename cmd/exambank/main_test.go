package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lamim/exambank/internal/checkpoint"
	"github.com/lamim/exambank/internal/config"
	"github.com/lamim/exambank/internal/orchestrator"
	"github.com/lamim/exambank/pkg/models"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"partial", fmt.Errorf("solve: %w", orchestrator.ErrPartialFailure), exitPartial},
		{"interrupted partial", fmt.Errorf("%w (interrupted: %w)", orchestrator.ErrPartialFailure, context.Canceled), exitPartial},
		{"config", fmt.Errorf("%w: bad", config.ErrConfig), exitFatal},
		{"input", orchestrator.ErrInput, exitFatal},
		{"other", errors.New("boom"), exitFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseStartNode(t *testing.T) {
	if n, err := parseStartNode("12"); err != nil || n != 12 {
		t.Fatalf("parseStartNode(12) = %d, %v", n, err)
	}
	for _, bad := range []string{"-1", "x", ""} {
		if _, err := parseStartNode(bad); !errors.Is(err, orchestrator.ErrInput) {
			t.Errorf("parseStartNode(%q) error = %v, want ErrInput", bad, err)
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.yaml")
	content := "nodes:\n  - descriptor:\n      preWrittenQuestions:\n        - text: Simplify $x^10$\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "validate", path)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "x^{10}") || !strings.Contains(out, "1 markup problems") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := execute(t, "validate", filepath.Join(dir, "missing.yaml")); !errors.Is(err, orchestrator.ErrInput) {
		t.Errorf("missing artifact error = %v, want ErrInput", err)
	}
}

func TestCheckpointCommands(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw_questions.json")
	if err := os.WriteFile(raw, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	store := checkpoint.NewStore(consoleLogger())
	store.Save(dir, models.StepExtraction, models.StepNames[models.StepExtraction], map[string]string{
		checkpoint.FileRaw: raw,
	})

	out, err := execute(t, "checkpoint", "show", dir)
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, "extraction") || !strings.Contains(out, "resumes at step 2 (filtering)") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := execute(t, "checkpoint", "clear", dir); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, err := os.Stat(checkpoint.Path(dir)); !os.IsNotExist(err) {
		t.Errorf("checkpoint still present after clear: %v", err)
	}
}

func TestHistoryWithoutLedger(t *testing.T) {
	out, err := execute(t, "history", t.TempDir())
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "No run history") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunRequiresTopic(t *testing.T) {
	if _, err := execute(t, "run", "exam.pdf", t.TempDir()); err == nil {
		t.Fatal("expected an error without --topic")
	}
}

const solutionsArtifact = `{"schema": "exambank.solutions.v1", "questions": [
  {"question": "Q1", "title": "Powers", "parts": [
    {"label": "a", "text": "Simplify $x^2 x^3$", "answer": "$x^5$", "stepByStepGuideline": ["Add the exponents"]}
  ]}
]}`

func TestFormatRunsWithoutCredentials(t *testing.T) {
	t.Setenv(config.EnvProvider, "")
	t.Setenv(config.EnvGeminiAPIKey, "")
	t.Setenv(config.EnvOpenAIAPIKey, "")

	dir := t.TempDir()
	input := filepath.Join(dir, "solutions.json")
	if err := os.WriteFile(input, []byte(solutionsArtifact), 0644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, "bank", "nodes.yaml")

	if _, err := execute(t, "format", input, output, "alg", "1", "--no-ledger"); err != nil {
		t.Fatalf("format failed without credentials: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("nodes not written: %v", err)
	}

	// Commands that call the model still need a key
	if _, err := execute(t, "solve", input, filepath.Join(dir, "out.json")); !errors.Is(err, config.ErrConfig) {
		t.Errorf("solve without credentials error = %v, want ErrConfig", err)
	}
}

func TestMissingInputCreatesNothing(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "bank")

	_, err := execute(t, "format", filepath.Join(dir, "missing.json"), filepath.Join(outDir, "nodes.yaml"), "alg", "1")
	if !errors.Is(err, orchestrator.ErrInput) {
		t.Fatalf("error = %v, want ErrInput", err)
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Errorf("output directory was created for a missing input: %v", err)
	}
}
