package orchestrator

import (
	"context"
	"fmt"

	"github.com/lamim/exambank/internal/checkpoint"
	"github.com/lamim/exambank/internal/writer"
	"github.com/lamim/exambank/pkg/models"
)

// Run executes every stage against one output directory with fixed artifact
// names. When the directory holds a usable checkpoint for the same source,
// stages it records as complete are skipped.
func (p *Pipeline) Run(ctx context.Context, source, outDir, topicID string, startNumber int) error {
	layout, err := writer.NewLayout(outDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInput, err)
	}

	next := p.resumeStep(layout.Dir, source)

	stages := []struct {
		step int
		run  func() error
	}{
		{models.StepExtraction, func() error {
			return p.Extract(ctx, source, layout.RawPath())
		}},
		{models.StepFiltering, func() error {
			return p.Filter(ctx, layout.RawPath(), layout.FilteredPath(), layout.RemovedPath())
		}},
		{models.StepSolution, func() error {
			return p.Solve(ctx, layout.FilteredPath(), layout.SolutionsPath())
		}},
		{models.StepFormatting, func() error {
			return p.Format(ctx, layout.SolutionsPath(), layout.NodesPath(), topicID, startNumber)
		}},
	}

	for _, s := range stages {
		if s.step < next {
			p.logger.Info("Skipping completed stage", "stage", models.StepNames[s.step])
			continue
		}
		if err := s.run(); err != nil {
			// A partially solved set is not formatted: the missing questions
			// would silently disappear from the bank.
			return err
		}
	}

	p.logger.Info("Pipeline complete", "output", layout.NodesPath())
	return nil
}

// resumeStep returns the first stage to run for dir
func (p *Pipeline) resumeStep(dir, source string) int {
	cp := p.checkpoints.Load(dir)
	if cp == nil {
		return models.StepExtraction
	}

	if recorded := cp.Files[checkpoint.FileSource]; recorded != absPath(source) {
		p.logger.Warn("Checkpoint belongs to another source, starting over",
			"checkpoint_source", recorded,
			"source", absPath(source))
		return models.StepExtraction
	}
	if missing := checkpoint.MissingFiles(cp); len(missing) > 0 {
		p.logger.Warn("Checkpoint references missing files, starting over", "missing", missing)
		return models.StepExtraction
	}

	next := checkpoint.NextStep(cp)
	if next > models.StepFormatting {
		return models.StepExtraction
	}
	p.logger.Info("Resuming from checkpoint",
		"completed", cp.StepName,
		"next", models.StepNames[next])
	return next
}
