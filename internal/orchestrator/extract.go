package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/lamim/exambank/internal/api"
	"github.com/lamim/exambank/internal/checkpoint"
	"github.com/lamim/exambank/internal/config"
	"github.com/lamim/exambank/internal/ledger"
	"github.com/lamim/exambank/internal/schema"
	"github.com/lamim/exambank/internal/util"
	"github.com/lamim/exambank/internal/writer"
	"github.com/lamim/exambank/pkg/models"
)

type extractionResponse struct {
	Questions []models.ExtractedQuestion `json:"questions"`
}

// Extract reads a source exam document, asks the model for its questions
// and writes them as a raw question artifact.
func (p *Pipeline) Extract(ctx context.Context, source, output string) error {
	run := p.begin(models.StepNames[models.StepExtraction], source, output)

	set, err := p.extract(ctx, run, source, output)
	if err != nil {
		return run.end(ledger.Outcome{}, err)
	}

	p.saveCheckpoint(output, models.StepExtraction, map[string]string{
		checkpoint.FileSource: absPath(source),
		checkpoint.FileRaw:    absPath(output),
	})
	return run.end(ledger.Outcome{QuestionsOut: len(set.Questions)}, nil)
}

func (p *Pipeline) extract(ctx context.Context, run *stageRun, source, output string) (*models.QuestionSet, error) {
	doc, err := api.LoadAttachment(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	run.track()

	// Text documents go into the prompt; anything else is attached as is
	documentText := ""
	attachment := doc
	if doc.IsText() {
		documentText = string(doc.Data)
		attachment = nil
	}
	run.logger.Info("Source document loaded",
		"mime_type", doc.MIMEType,
		"bytes", len(doc.Data),
		"inlined", attachment == nil)

	prompt, err := util.RenderTemplate(p.cfg.PromptTemplates.Extraction, map[string]interface{}{
		"SourceName":   doc.Name,
		"DocumentText": documentText,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to render extraction template: %w", config.ErrConfig, err)
	}

	response, err := p.service.Invoke(ctx, prompt, attachment)
	if err != nil {
		return nil, fmt.Errorf("%w: extraction request failed: %w", ErrBackend, err)
	}

	files := util.DiagnosticPaths(output, util.NoBatch)
	p.keepRawResponse(run, files, response)

	parsed, strategy, err := util.DecodeModelJSON[extractionResponse](response)
	p.recordRepair(run, strategy, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackend, util.PersistRepairFailure(files, err))
	}

	set := &models.QuestionSet{
		Schema:    schema.KindRaw,
		Source:    filepath.Base(source),
		Questions: models.Flatten(parsed.Questions),
	}
	if problems := schema.CheckQuestionSet(set, schema.KindRaw); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrBackend, &schema.Error{
			Path:     files.RawResponse,
			Expected: []string{schema.KindRaw},
			Got:      schema.KindRaw,
			Problems: problems,
		})
	}

	if err := writer.WriteJSON(output, set); err != nil {
		return nil, err
	}

	p.metrics.AddQuestions(models.StepNames[models.StepExtraction], "extracted", len(set.Questions))
	run.logger.Info("Questions extracted",
		"questions", len(set.Questions),
		"parts", set.TotalParts(),
		"output", output)
	return set, nil
}

// keepRawResponse stores the unmodified response beside the output. Failing
// to do so loses evidence but not data, so it only warns.
func (p *Pipeline) keepRawResponse(run *stageRun, files util.DiagnosticFiles, response string) {
	if err := util.WriteRawResponse(files, response); err != nil {
		run.logger.Warn("Failed to save raw response", "path", files.RawResponse, "error", err)
		return
	}
	run.logger.Debug("Raw response saved", "path", files.RawResponse, "length", len(response))
}

func (p *Pipeline) recordRepair(run *stageRun, strategy util.Strategy, err error) {
	if err != nil {
		p.metrics.RecordRepair("")
		return
	}
	p.metrics.RecordRepair(string(strategy))
	if strategy != util.StrategyStrict {
		run.logger.Warn("Model response needed repair", "strategy", strategy)
	}
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
