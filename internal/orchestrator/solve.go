package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lamim/exambank/internal/batch"
	"github.com/lamim/exambank/internal/checkpoint"
	"github.com/lamim/exambank/internal/ledger"
	"github.com/lamim/exambank/internal/schema"
	"github.com/lamim/exambank/internal/util"
	"github.com/lamim/exambank/internal/writer"
	"github.com/lamim/exambank/pkg/models"
)

type solvedPart struct {
	Label               string   `json:"label"`
	AvatarIntro         string   `json:"avatarIntro"`
	StepByStepGuideline []string `json:"stepByStepGuideline"`
}

type solvedQuestion struct {
	Title string       `json:"title"`
	Parts []solvedPart `json:"parts"`
}

type solutionResponse struct {
	Questions []solvedQuestion `json:"questions"`
}

// promptQuestion is the view of a record sent with a solution request
type promptQuestion struct {
	Index    int           `json:"index"`
	Question string        `json:"question"`
	Parts    []models.Part `json:"parts"`
}

var errEnrichmentMismatch = errors.New("solution does not match the questions sent")

// Solve enriches questions with titles, intros and step-by-step guidelines
// in batches. The output holds every successful batch even when some fail;
// failed batches go to a manifest beside the output and ErrPartialFailure is
// returned.
func (p *Pipeline) Solve(ctx context.Context, input, output string) error {
	stage := models.StepNames[models.StepSolution]
	run := p.begin(stage, input, output)

	set, err := schema.LoadQuestionSet(input, run.logger, schema.KindFiltered, schema.KindRaw)
	if err != nil {
		return run.end(ledger.Outcome{}, fmt.Errorf("%w: %w", ErrInput, err))
	}
	run.track()
	total := len(set.Questions)

	proc := batch.NewProcessor(stage, run.logger, p.metrics).WithProgress(p.progress)
	result, runErr := proc.Run(ctx, set.Questions, func(ctx context.Context, b batch.Batch) ([]models.QuestionRecord, error) {
		return p.solveBatch(ctx, run, output, b)
	})

	solved := result.Records
	if solved == nil {
		solved = []models.QuestionRecord{}
	}
	if err := writer.WriteJSON(output, &models.QuestionSet{
		Schema:    schema.KindSolutions,
		Source:    set.Source,
		Questions: solved,
	}); err != nil {
		return run.end(ledger.Outcome{QuestionsIn: total, FailedBatches: result.Failures}, err)
	}
	p.metrics.AddQuestions(stage, "solved", len(result.Records))
	p.metrics.AddQuestions(stage, "failed", result.FailedQuestions())

	manifestPath := writer.ManifestPath(output)
	outcome := ledger.Outcome{
		QuestionsIn:   total,
		QuestionsOut:  len(result.Records),
		FailedBatches: result.Failures,
	}

	if !result.Failed() {
		if err := os.Remove(manifestPath); err == nil {
			run.logger.Info("Removed stale failure manifest", "path", manifestPath)
		}
		p.saveCheckpoint(output, models.StepSolution, map[string]string{
			checkpoint.FileFiltered:  absPath(input),
			checkpoint.FileSolutions: absPath(output),
		})
		return run.end(outcome, nil)
	}

	manifest := &models.FailureManifest{
		Schema:             schema.KindFailures,
		RunID:              run.runID,
		Stage:              stage,
		InputPath:          input,
		OutputPath:         output,
		BatchSize:          proc.Size(),
		TotalQuestions:     total,
		SucceededQuestions: len(result.Records),
		FailedBatches:      result.Failures,
	}
	if err := writer.WriteJSON(manifestPath, manifest); err != nil {
		return run.end(outcome, fmt.Errorf("%w: %d batches failed and the manifest could not be written: %w",
			ErrPartialFailure, len(result.Failures), err))
	}

	run.logger.Warn("Failure manifest written",
		"path", manifestPath,
		"failed_batches", len(result.Failures),
		"failed_questions", result.FailedQuestions(),
		"failed_parts", manifest.FailedParts())

	failErr := fmt.Errorf("%w: %d of %d batches failed, see %s",
		ErrPartialFailure, len(result.Failures), result.TotalBatches, manifestPath)
	if runErr != nil {
		failErr = fmt.Errorf("%w (interrupted: %w)", failErr, runErr)
	}
	return run.end(outcome, failErr)
}

func (p *Pipeline) solveBatch(ctx context.Context, run *stageRun, output string, b batch.Batch) ([]models.QuestionRecord, error) {
	payload := make([]promptQuestion, len(b.Records))
	for i, q := range b.Records {
		payload[i] = promptQuestion{Index: i, Question: q.Question, Parts: q.Parts}
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	prompt, err := util.RenderTemplate(p.cfg.PromptTemplates.Solution, map[string]interface{}{
		"Count":     len(b.Records),
		"Questions": string(data),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render solution template: %w", err)
	}

	response, err := p.service.Invoke(ctx, prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackend, err)
	}

	files := util.DiagnosticPaths(output, b.Index)
	parsed, strategy, err := util.DecodeModelJSON[solutionResponse](response)
	p.recordRepair(run, strategy, err)
	if err != nil {
		return nil, util.PersistRepairFailure(files, err)
	}

	merged, err := mergeSolutions(b.Records, parsed.Questions)
	if err == nil {
		if problems := schema.CheckQuestionSet(&models.QuestionSet{Questions: merged}, schema.KindSolutions); len(problems) > 0 {
			err = fmt.Errorf("%w: %s", errEnrichmentMismatch, strings.Join(problems, "; "))
		}
	}
	if err != nil {
		// Keep the response so the operator can see what came back
		if werr := util.WriteRawResponse(files, response); werr != nil {
			return nil, err
		}
		return nil, &util.DiagnosticError{Paths: []string{files.RawResponse}, Cause: err}
	}
	return merged, nil
}

// mergeSolutions copies the generated fields onto the original records by
// position. Question text, labels and answers always come from the input.
func mergeSolutions(records []models.QuestionRecord, solved []solvedQuestion) ([]models.QuestionRecord, error) {
	if len(solved) != len(records) {
		return nil, fmt.Errorf("%w: sent %d questions, received %d", errEnrichmentMismatch, len(records), len(solved))
	}

	out := make([]models.QuestionRecord, len(records))
	for i, q := range records {
		s := solved[i]
		if len(s.Parts) != len(q.Parts) {
			return nil, fmt.Errorf("%w: question %d has %d parts, received %d",
				errEnrichmentMismatch, i, len(q.Parts), len(s.Parts))
		}

		merged := q
		merged.Title = strings.TrimSpace(s.Title)
		merged.Parts = make([]models.Part, len(q.Parts))
		for j, part := range q.Parts {
			part.AvatarIntro = strings.TrimSpace(s.Parts[j].AvatarIntro)
			part.StepByStepGuideline = nonEmpty(s.Parts[j].StepByStepGuideline)
			merged.Parts[j] = part
		}
		out[i] = merged
	}
	return out, nil
}

func nonEmpty(steps []string) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
