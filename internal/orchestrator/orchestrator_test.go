package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamim/exambank/internal/api"
	"github.com/lamim/exambank/internal/checkpoint"
	"github.com/lamim/exambank/internal/config"
	"github.com/lamim/exambank/internal/ledger"
	"github.com/lamim/exambank/internal/metrics"
	"github.com/lamim/exambank/internal/schema"
	"github.com/lamim/exambank/internal/writer"
	"github.com/lamim/exambank/pkg/models"
)

const (
	extractPrefix = "EXTRACT"
	filterPrefix  = "FILTER"
	solvePrefix   = "SOLVE"
)

// fakeService answers by stage, keyed on the first word of the prompt
type fakeService struct {
	mu      sync.Mutex
	calls   map[string]int
	extract func(prompt string, att *api.Attachment) (string, error)
	filter  func(prompt string) (string, error)
	solve   func(ctx context.Context, call int, prompt string) (string, error)
}

func (f *fakeService) Invoke(ctx context.Context, prompt string, att *api.Attachment) (string, error) {
	stage, _, _ := strings.Cut(prompt, " ")

	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[stage]++
	call := f.calls[stage]
	f.mu.Unlock()

	switch stage {
	case extractPrefix:
		if f.extract == nil {
			return "", errors.New("unexpected extraction call")
		}
		return f.extract(prompt, att)
	case filterPrefix:
		if f.filter == nil {
			return `{"removed": []}`, nil
		}
		return f.filter(prompt)
	case solvePrefix:
		if f.solve == nil {
			return solveAll(prompt)
		}
		return f.solve(ctx, call, prompt)
	}
	return "", fmt.Errorf("unrecognised prompt %q", prompt)
}

func (f *fakeService) Backend() config.Provider {
	return config.ProviderOpenAI
}

func (f *fakeService) count(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stage]
}

// solveAll answers a solution prompt with one enrichment per question and part
func solveAll(prompt string) (string, error) {
	_, body, _ := strings.Cut(prompt, "\n")
	var sent []promptQuestion
	if err := json.Unmarshal([]byte(body), &sent); err != nil {
		return "", err
	}

	resp := solutionResponse{}
	for _, q := range sent {
		sq := solvedQuestion{Title: "Title " + q.Question}
		for _, p := range q.Parts {
			sq.Parts = append(sq.Parts, solvedPart{
				Label:               p.Label,
				AvatarIntro:         "Let's look at " + p.Label,
				StepByStepGuideline: []string{"Read the question", "Solve for " + p.Label},
			})
		}
		resp.Questions = append(resp.Questions, sq)
	}
	data, err := json.Marshal(resp)
	return "```json\n" + string(data) + "\n```", err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(svc api.Service) *Pipeline {
	cfg := config.Default()
	cfg.PromptTemplates.Extraction = extractPrefix + " {{.SourceName}}\n{{.DocumentText}}"
	cfg.PromptTemplates.Filtering = filterPrefix + " {{.Count}}\n{{.Questions}}"
	cfg.PromptTemplates.Solution = solvePrefix + " {{.Count}}\n{{.Questions}}"

	logger := testLogger()
	return New(cfg, svc, checkpoint.NewStore(logger), metrics.NewCollector(logger), logger)
}

func writeSource(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "exam.txt")
	require.NoError(t, os.WriteFile(path, []byte("1. Expand (x+1)^2\n2. Solve x+1=2\n"), 0644))
	return path
}

const extractionJSON = `Here are the questions:
{"questions": [
  {"question": "Expand and simplify", "parts": [
    {"label": "a", "text": "Expand $(x+1)^2$", "answer": "$x^2+2x+1$"},
    {"label": "b", "text": "Expand $(x-1)^2$", "answer": "$x^2-2x+1$"},
    {"label": "c", "text": "Factorise $x^2-1$", "answer": "$(x-1)(x+1)$"}
  ]},
  {"question": "Solve", "parts": [
    {"label": "a", "text": "Consider $x+1=2$", "subparts": [
      {"label": "i", "text": "Solve for $x$", "answer": "1"},
      {"label": "ii", "text": "Check $x=1$", "answer": "yes"}
    ]}
  ]}
]}`

func makeQuestions(n int) []models.QuestionRecord {
	out := make([]models.QuestionRecord, n)
	for i := range out {
		out[i] = models.QuestionRecord{
			Question: fmt.Sprintf("Q%d", i+1),
			Parts:    []models.Part{{Label: "a", Text: fmt.Sprintf("part of Q%d", i+1), Answer: "42"}},
		}
	}
	return out
}

func writeQuestionSet(t *testing.T, path, kind string, questions []models.QuestionRecord) {
	t.Helper()
	require.NoError(t, writer.WriteJSON(path, &models.QuestionSet{Schema: kind, Questions: questions}))
}

func readQuestionSet(t *testing.T, path string) models.QuestionSet {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var set models.QuestionSet
	require.NoError(t, json.Unmarshal(data, &set))
	return set
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	svc := &fakeService{
		extract: func(prompt string, att *api.Attachment) (string, error) {
			assert.Nil(t, att, "text sources are inlined")
			assert.Contains(t, prompt, "Expand (x+1)^2")
			return extractionJSON, nil
		},
	}

	p := newTestPipeline(svc)
	require.NoError(t, p.Run(context.Background(), writeSource(t, dir), outDir, "alg", 1))

	layout := &writer.Layout{Dir: outDir}
	raw := readQuestionSet(t, layout.RawPath())
	assert.Equal(t, schema.KindRaw, raw.Schema)
	assert.Equal(t, 5, raw.TotalParts(), "3 parts plus two flattened sub-parts")

	solved := readQuestionSet(t, layout.SolutionsPath())
	require.Len(t, solved.Questions, 2)
	assert.Equal(t, "Title Expand and simplify", solved.Questions[0].Title)
	assert.Equal(t, "Expand $(x+1)^2$", solved.Questions[0].Parts[0].Text, "input text is never replaced")

	nodes, err := schema.LoadNodeSet(layout.NodesPath(), writer.DecoderFor(layout.NodesPath()))
	require.NoError(t, err)
	require.Len(t, nodes.Nodes, 1, "3 + 2 parts fit one node")
	node := nodes.Nodes[0]
	assert.Equal(t, "alg-node-1", node.ID)
	assert.Equal(t, 5, node.ProblemsRequired)
	assert.Len(t, node.Descriptor.PreWrittenQuestions, 5)

	assert.NoFileExists(t, checkpoint.Path(outDir), "a finished run leaves nothing to resume")
	assert.NoFileExists(t, writer.ManifestPath(layout.SolutionsPath()))

	l, err := ledger.Open(outDir, testLogger())
	require.NoError(t, err)
	defer l.Close()
	runs, err := l.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	for _, r := range runs {
		assert.Equal(t, ledger.StatusSucceeded, r.Status, r.Stage)
	}
}

func TestSolve_PartialFailureWritesManifest(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "filtered.json")
	output := filepath.Join(dir, "solutions.json")
	writeQuestionSet(t, input, schema.KindFiltered, makeQuestions(23))

	svc := &fakeService{
		solve: func(_ context.Context, call int, prompt string) (string, error) {
			if call == 3 {
				return "", errors.New("service unavailable")
			}
			return solveAll(prompt)
		},
	}

	err := newTestPipeline(svc).Solve(context.Background(), input, output)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPartialFailure))

	solved := readQuestionSet(t, output)
	assert.Len(t, solved.Questions, 18)
	assert.Equal(t, "Q10", solved.Questions[9].Question)
	assert.Equal(t, "Q16", solved.Questions[10].Question)

	data, err := os.ReadFile(writer.ManifestPath(output))
	require.NoError(t, err)
	var manifest models.FailureManifest
	require.NoError(t, json.Unmarshal(data, &manifest))

	assert.Equal(t, schema.KindFailures, manifest.Schema)
	assert.Equal(t, 23, manifest.TotalQuestions)
	assert.Equal(t, 18, manifest.SucceededQuestions)
	assert.Equal(t, 5, manifest.BatchSize)
	require.Len(t, manifest.FailedBatches, 1)

	fb := manifest.FailedBatches[0]
	assert.Equal(t, 2, fb.BatchIndex)
	assert.Equal(t, 11, fb.FirstQuestion)
	assert.Equal(t, 15, fb.LastQuestion)
	assert.Equal(t, 5, fb.QuestionCount)
	assert.Len(t, fb.Questions, 5)
	assert.Contains(t, fb.Error, "service unavailable")

	// Every input part is either solved or in the manifest
	assert.Equal(t, 23, solved.TotalParts()+manifest.FailedParts())

	assert.Nil(t, checkpoint.NewStore(testLogger()).Load(dir), "partial runs do not checkpoint")
}

func TestSolve_SuccessRemovesStaleManifest(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "filtered.json")
	output := filepath.Join(dir, "solutions.json")
	writeQuestionSet(t, input, schema.KindFiltered, makeQuestions(7))
	require.NoError(t, os.WriteFile(writer.ManifestPath(output), []byte("{}"), 0644))

	require.NoError(t, newTestPipeline(&fakeService{}).Solve(context.Background(), input, output))

	assert.NoFileExists(t, writer.ManifestPath(output))
	cp := checkpoint.NewStore(testLogger()).Load(dir)
	require.NotNil(t, cp)
	assert.Equal(t, models.StepSolution, cp.Step)
}

func TestSolve_MismatchedEnrichmentFailsBatch(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "filtered.json")
	output := filepath.Join(dir, "solutions.json")
	writeQuestionSet(t, input, schema.KindFiltered, makeQuestions(3))

	svc := &fakeService{
		solve: func(context.Context, int, string) (string, error) {
			return `{"questions": [{"title": "only one", "parts": [{"label": "a", "stepByStepGuideline": ["x"]}]}]}`, nil
		},
	}

	err := newTestPipeline(svc).Solve(context.Background(), input, output)
	require.ErrorIs(t, err, ErrPartialFailure)

	data, err := os.ReadFile(writer.ManifestPath(output))
	require.NoError(t, err)
	var manifest models.FailureManifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Len(t, manifest.FailedBatches, 1)

	fb := manifest.FailedBatches[0]
	assert.Contains(t, fb.Error, "sent 3 questions, received 1")
	require.Len(t, fb.Diagnostics, 1)
	assert.FileExists(t, fb.Diagnostics[0])
	assert.Empty(t, readQuestionSet(t, output).Questions)
}

func TestSolve_CancelRecordsRemainingBatches(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "filtered.json")
	output := filepath.Join(dir, "solutions.json")
	writeQuestionSet(t, input, schema.KindFiltered, makeQuestions(12))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := &fakeService{
		solve: func(ctx context.Context, call int, prompt string) (string, error) {
			if call == 2 {
				cancel()
				return "", ctx.Err()
			}
			return solveAll(prompt)
		},
	}

	err := newTestPipeline(svc).Solve(ctx, input, output)
	require.ErrorIs(t, err, ErrPartialFailure)
	assert.ErrorIs(t, err, context.Canceled)

	data, err := os.ReadFile(writer.ManifestPath(output))
	require.NoError(t, err)
	var manifest models.FailureManifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Len(t, manifest.FailedBatches, 2)
	assert.Equal(t, 7, manifest.FailedBatches[0].QuestionCount+manifest.FailedBatches[1].QuestionCount)
	assert.Len(t, readQuestionSet(t, output).Questions, 5)
}

func TestSolve_RejectsWrongSchema(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "nodes.json")
	writeQuestionSet(t, input, schema.KindSolutions, makeQuestions(1))

	err := newTestPipeline(&fakeService{}).Solve(context.Background(), input, filepath.Join(dir, "out.json"))
	require.ErrorIs(t, err, ErrInput)
	var se *schema.Error
	assert.True(t, errors.As(err, &se))
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  error
		kept     []string
		removed  []int
	}{
		{
			name:     "nothing removed",
			response: `{"removed": []}`,
			kept:     []string{"Q1", "Q2", "Q3"},
		},
		{
			name:     "removals sorted by index",
			response: `{"removed": [{"index": 2, "reason": "refers to a figure"}, {"index": 0, "reason": "needs the diagram"}]}`,
			kept:     []string{"Q2"},
			removed:  []int{0, 2},
		},
		{
			name:     "index out of range",
			response: `{"removed": [{"index": 3, "reason": "x"}]}`,
			wantErr:  ErrBackend,
		},
		{
			name:     "negative index",
			response: `{"removed": [{"index": -1, "reason": "x"}]}`,
			wantErr:  ErrBackend,
		},
		{
			name:     "duplicate index",
			response: `{"removed": [{"index": 1, "reason": "x"}, {"index": 1, "reason": "y"}]}`,
			wantErr:  ErrBackend,
		},
		{
			name:     "missing removed list",
			response: `{"kept": [0, 1, 2]}`,
			wantErr:  ErrBackend,
		},
		{
			name:     "no json at all",
			response: "I could not decide.",
			wantErr:  ErrBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, "raw.json")
			output := filepath.Join(dir, "filtered.json")
			removalLog := filepath.Join(dir, "removed.json")
			writeQuestionSet(t, input, schema.KindRaw, makeQuestions(3))

			var prompt string
			svc := &fakeService{filter: func(p string) (string, error) {
				prompt = p
				return tt.response, nil
			}}

			err := newTestPipeline(svc).Filter(context.Background(), input, output, removalLog)
			assert.Contains(t, prompt, "[2] Q3")

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.NoFileExists(t, output)
				return
			}
			require.NoError(t, err)

			filtered := readQuestionSet(t, output)
			assert.Equal(t, schema.KindFiltered, filtered.Schema)
			var kept []string
			for _, q := range filtered.Questions {
				kept = append(kept, q.Question)
			}
			assert.Equal(t, tt.kept, kept)

			data, err := os.ReadFile(removalLog)
			require.NoError(t, err)
			var log models.RemovalLog
			require.NoError(t, json.Unmarshal(data, &log))
			assert.Equal(t, len(tt.kept), log.Kept)
			var removed []int
			for _, r := range log.Removed {
				removed = append(removed, r.Index)
				assert.NotEmpty(t, r.Reason)
				assert.Equal(t, fmt.Sprintf("Q%d", r.Index+1), r.Question.Question)
			}
			assert.Equal(t, tt.removed, removed)
		})
	}
}

func TestExtract_Errors(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		dir := t.TempDir()
		err := newTestPipeline(&fakeService{}).Extract(context.Background(),
			filepath.Join(dir, "nope.pdf"), filepath.Join(dir, "raw.json"))
		require.ErrorIs(t, err, ErrInput)
	})

	t.Run("service failure", func(t *testing.T) {
		dir := t.TempDir()
		svc := &fakeService{extract: func(string, *api.Attachment) (string, error) {
			return "", api.ErrContentBlocked
		}}
		err := newTestPipeline(svc).Extract(context.Background(), writeSource(t, dir), filepath.Join(dir, "raw.json"))
		require.ErrorIs(t, err, ErrBackend)
		assert.ErrorIs(t, err, api.ErrContentBlocked)
	})

	t.Run("unrepairable response keeps diagnostics", func(t *testing.T) {
		dir := t.TempDir()
		output := filepath.Join(dir, "raw.json")
		svc := &fakeService{extract: func(string, *api.Attachment) (string, error) {
			return `{"questions": [{"question": "Q", "parts": [}`, nil
		}}
		err := newTestPipeline(svc).Extract(context.Background(), writeSource(t, dir), output)
		require.ErrorIs(t, err, ErrBackend)
		assert.FileExists(t, filepath.Join(dir, "raw.raw_response.txt"))
		assert.FileExists(t, filepath.Join(dir, "raw.repair_attempt.txt"))
		assert.NoFileExists(t, output)
	})

	t.Run("no questions", func(t *testing.T) {
		dir := t.TempDir()
		svc := &fakeService{extract: func(string, *api.Attachment) (string, error) {
			return `{"questions": []}`, nil
		}}
		err := newTestPipeline(svc).Extract(context.Background(), writeSource(t, dir), filepath.Join(dir, "raw.json"))
		require.ErrorIs(t, err, ErrBackend)
	})
}

func TestExtract_AttachesBinarySource(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "exam.pdf")
	require.NoError(t, os.WriteFile(source, []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n"), 0644))

	svc := &fakeService{extract: func(_ string, att *api.Attachment) (string, error) {
		require.NotNil(t, att)
		assert.Equal(t, "application/pdf", att.MIMEType)
		return extractionJSON, nil
	}}

	output := filepath.Join(dir, "raw.json")
	require.NoError(t, newTestPipeline(svc).Extract(context.Background(), source, output))

	raw := readQuestionSet(t, output)
	assert.Equal(t, "exam.pdf", raw.Source)
	cp := checkpoint.NewStore(testLogger()).Load(dir)
	require.NotNil(t, cp)
	assert.Equal(t, models.StepExtraction, cp.Step)
}

func TestFormat_JSONOutputAndErrors(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "solutions.json")
	questions := makeQuestions(9)
	for i := range questions {
		questions[i].Title = "T"
		questions[i].Parts[0].StepByStepGuideline = []string{"step"}
	}
	writeQuestionSet(t, input, schema.KindSolutions, questions)

	p := newTestPipeline(&fakeService{})
	output := filepath.Join(dir, "nodes.json")
	require.NoError(t, p.Format(context.Background(), input, output, "geo", 10))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var set models.NodeSet
	require.NoError(t, json.Unmarshal(data, &set), "a .json output is written as JSON")
	require.Len(t, set.Nodes, 2, "nine single-part questions pack as 6 + 3")
	assert.Equal(t, "geo-node-10", set.Nodes[0].ID)
	assert.Equal(t, "geo-node-11", set.Nodes[1].ID)

	err = p.Format(context.Background(), input, filepath.Join(dir, "x.yaml"), " ", 1)
	require.ErrorIs(t, err, ErrInput, "blank topic")

	raw := filepath.Join(dir, "raw.json")
	writeQuestionSet(t, raw, schema.KindRaw, makeQuestions(1))
	err = p.Format(context.Background(), raw, filepath.Join(dir, "y.yaml"), "geo", 1)
	require.ErrorIs(t, err, ErrInput, "formatting needs solutions")
}

func TestRun_ResumesAfterPartialFailure(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	source := writeSource(t, dir)

	first := &fakeService{
		extract: func(string, *api.Attachment) (string, error) { return extractionJSON, nil },
		solve: func(context.Context, int, string) (string, error) {
			return "", errors.New("quota exhausted")
		},
	}
	err := newTestPipeline(first).Run(context.Background(), source, outDir, "alg", 1)
	require.ErrorIs(t, err, ErrPartialFailure)

	layout := &writer.Layout{Dir: outDir}
	assert.NoFileExists(t, layout.NodesPath(), "partial solutions are not formatted")
	cp := checkpoint.NewStore(testLogger()).Load(outDir)
	require.NotNil(t, cp)
	assert.Equal(t, models.StepFiltering, cp.Step)
	assert.Equal(t, absPath(source), cp.Files[checkpoint.FileSource])

	second := &fakeService{}
	require.NoError(t, newTestPipeline(second).Run(context.Background(), source, outDir, "alg", 1))
	assert.Zero(t, second.count(extractPrefix))
	assert.Zero(t, second.count(filterPrefix))
	assert.Equal(t, 1, second.count(solvePrefix))
	assert.FileExists(t, layout.NodesPath())
}

func TestRun_DifferentSourceStartsOver(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	source := writeSource(t, dir)

	require.NoError(t, os.MkdirAll(outDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644))
	p := newTestPipeline(&fakeService{})
	p.saveCheckpoint(filepath.Join(outDir, writer.RawFilename), models.StepExtraction, map[string]string{
		checkpoint.FileSource: filepath.Join(dir, "other.txt"),
	})
	require.NotNil(t, checkpoint.NewStore(testLogger()).Load(outDir))

	svc := &fakeService{extract: func(string, *api.Attachment) (string, error) { return extractionJSON, nil }}
	require.NoError(t, newTestPipeline(svc).Run(context.Background(), source, outDir, "alg", 1))
	assert.Equal(t, 1, svc.count(extractPrefix))
}

func TestMergeSolutions(t *testing.T) {
	records := []models.QuestionRecord{{
		Question: "Q",
		Parts: []models.Part{
			{Label: "a", Text: "A", Answer: "1"},
			{Label: "b", Text: "B", Answer: "2"},
		},
	}}

	merged, err := mergeSolutions(records, []solvedQuestion{{
		Title: "  Pairs ",
		Parts: []solvedPart{
			{Label: "changed", AvatarIntro: "hi", StepByStepGuideline: []string{"one", " ", "two"}},
			{Label: "b", StepByStepGuideline: []string{"three"}},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, "Pairs", merged[0].Title)
	assert.Equal(t, "a", merged[0].Parts[0].Label, "labels come from the input")
	assert.Equal(t, "1", merged[0].Parts[0].Answer)
	assert.Equal(t, []string{"one", "two"}, merged[0].Parts[0].StepByStepGuideline)
	assert.Empty(t, records[0].Title, "input is not modified")

	_, err = mergeSolutions(records, []solvedQuestion{{Title: "x", Parts: []solvedPart{{Label: "a"}}}})
	assert.ErrorIs(t, err, errEnrichmentMismatch)
}

func TestStages_RejectedInputLeavesNoLedger(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.json")
	wrongKind := filepath.Join(dir, "raw.json")
	writeQuestionSet(t, wrongKind, schema.KindRaw, makeQuestions(1))

	p := newTestPipeline(&fakeService{})
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(outDir string) error
	}{
		{"extract", func(out string) error { return p.Extract(ctx, missing, filepath.Join(out, "raw.json")) }},
		{"filter", func(out string) error {
			return p.Filter(ctx, missing, filepath.Join(out, "f.json"), filepath.Join(out, "r.json"))
		}},
		{"solve", func(out string) error { return p.Solve(ctx, missing, filepath.Join(out, "s.json")) }},
		{"format", func(out string) error { return p.Format(ctx, wrongKind, filepath.Join(out, "n.yaml"), "t", 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outDir := t.TempDir()
			require.ErrorIs(t, tt.run(outDir), ErrInput)
			assert.NoFileExists(t, ledger.Path(outDir))
		})
	}
}

func TestStages_LedgerRecordsAcceptedInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "filtered.json")
	writeQuestionSet(t, input, schema.KindFiltered, makeQuestions(2))

	outDir := t.TempDir()
	require.NoError(t, newTestPipeline(&fakeService{}).Solve(context.Background(), input, filepath.Join(outDir, "s.json")))

	l, err := ledger.Open(outDir, testLogger())
	require.NoError(t, err)
	defer l.Close()
	runs, err := l.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ledger.StatusSucceeded, runs[0].Status)
	assert.Equal(t, 2, runs[0].QuestionsOut)
}
