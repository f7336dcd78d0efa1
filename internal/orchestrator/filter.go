package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lamim/exambank/internal/checkpoint"
	"github.com/lamim/exambank/internal/config"
	"github.com/lamim/exambank/internal/ledger"
	"github.com/lamim/exambank/internal/schema"
	"github.com/lamim/exambank/internal/util"
	"github.com/lamim/exambank/internal/writer"
	"github.com/lamim/exambank/pkg/models"
)

type removal struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type filterResponse struct {
	Removed *[]removal `json:"removed"`
}

// Filter asks the model which questions cannot stand alone and splits the
// input into kept and removed questions. Records are never rewritten: the
// model only names indices.
func (p *Pipeline) Filter(ctx context.Context, input, output, removalLog string) error {
	run := p.begin(models.StepNames[models.StepFiltering], input, output)

	in, kept, err := p.filter(ctx, run, input, output, removalLog)
	if err != nil {
		return run.end(ledger.Outcome{QuestionsIn: in}, err)
	}

	p.saveCheckpoint(output, models.StepFiltering, map[string]string{
		checkpoint.FileRaw:      absPath(input),
		checkpoint.FileFiltered: absPath(output),
		checkpoint.FileRemoved:  absPath(removalLog),
	})
	return run.end(ledger.Outcome{QuestionsIn: in, QuestionsOut: kept}, nil)
}

func (p *Pipeline) filter(ctx context.Context, run *stageRun, input, output, removalLog string) (int, int, error) {
	set, err := schema.LoadQuestionSet(input, run.logger, schema.KindRaw, schema.KindFiltered)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrInput, err)
	}
	run.track()
	total := len(set.Questions)

	prompt, err := util.RenderTemplate(p.cfg.PromptTemplates.Filtering, map[string]interface{}{
		"Count":     total,
		"Questions": numberedQuestions(set.Questions),
	})
	if err != nil {
		return total, 0, fmt.Errorf("%w: failed to render filtering template: %w", config.ErrConfig, err)
	}

	response, err := p.service.Invoke(ctx, prompt, nil)
	if err != nil {
		return total, 0, fmt.Errorf("%w: filtering request failed: %w", ErrBackend, err)
	}

	files := util.DiagnosticPaths(output, util.NoBatch)
	p.keepRawResponse(run, files, response)

	parsed, strategy, err := util.DecodeModelJSON[filterResponse](response)
	p.recordRepair(run, strategy, err)
	if err != nil {
		return total, 0, fmt.Errorf("%w: %w", ErrBackend, util.PersistRepairFailure(files, err))
	}
	if parsed.Removed == nil {
		return total, 0, fmt.Errorf("%w: filtering response has no \"removed\" list (see %s)", ErrBackend, files.RawResponse)
	}

	removed, err := resolveRemovals(*parsed.Removed, set.Questions)
	if err != nil {
		return total, 0, fmt.Errorf("%w: %w (see %s)", ErrBackend, err, files.RawResponse)
	}

	dropped := make(map[int]bool, len(removed))
	for _, r := range removed {
		dropped[r.Index] = true
	}
	kept := make([]models.QuestionRecord, 0, total-len(removed))
	for i, q := range set.Questions {
		if !dropped[i] {
			kept = append(kept, q)
		}
	}

	if err := writer.WriteJSON(output, &models.QuestionSet{
		Schema:    schema.KindFiltered,
		Source:    set.Source,
		Questions: kept,
	}); err != nil {
		return total, 0, err
	}
	if err := writer.WriteJSON(removalLog, &models.RemovalLog{
		Schema:  schema.KindRemoved,
		Input:   input,
		Kept:    len(kept),
		Removed: removed,
	}); err != nil {
		return total, 0, err
	}

	stage := models.StepNames[models.StepFiltering]
	p.metrics.AddQuestions(stage, "kept", len(kept))
	p.metrics.AddQuestions(stage, "removed", len(removed))
	if len(kept) == 0 {
		run.logger.Warn("Every question was removed", "input", input)
	}
	run.logger.Info("Questions filtered",
		"kept", len(kept),
		"removed", len(removed),
		"removal_log", removalLog)
	return total, len(kept), nil
}

var errBadRemoval = errors.New("invalid removal index")

// resolveRemovals checks the model's indices and attaches the removed
// records, sorted by index. An index outside the input or named twice
// rejects the whole response.
func resolveRemovals(list []removal, questions []models.QuestionRecord) ([]models.RemovedQuestion, error) {
	seen := make(map[int]bool, len(list))
	out := make([]models.RemovedQuestion, 0, len(list))
	for _, r := range list {
		if r.Index < 0 || r.Index >= len(questions) {
			return nil, fmt.Errorf("%w: %d is outside [0, %d)", errBadRemoval, r.Index, len(questions))
		}
		if seen[r.Index] {
			return nil, fmt.Errorf("%w: %d listed twice", errBadRemoval, r.Index)
		}
		seen[r.Index] = true
		out = append(out, models.RemovedQuestion{
			Index:    r.Index,
			Reason:   strings.TrimSpace(r.Reason),
			Question: questions[r.Index],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// numberedQuestions renders the question list the filtering prompt refers to
func numberedQuestions(questions []models.QuestionRecord) string {
	var b strings.Builder
	for i, q := range questions {
		fmt.Fprintf(&b, "[%d] %s\n", i, q.Question)
		for _, part := range q.Parts {
			if part.Label == models.MainPartLabel && part.Text == q.Question {
				continue
			}
			fmt.Fprintf(&b, "    (%s) %s\n", part.Label, part.Text)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
