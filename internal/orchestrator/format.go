package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/lamim/exambank/internal/ledger"
	"github.com/lamim/exambank/internal/markup"
	"github.com/lamim/exambank/internal/packing"
	"github.com/lamim/exambank/internal/schema"
	"github.com/lamim/exambank/internal/writer"
	"github.com/lamim/exambank/pkg/models"
)

// Format groups solved questions into nodes and writes the final artifact.
// Markup findings are logged and never block the write. A finished pipeline
// has nothing left to resume, so the checkpoint of the output directory is
// removed.
func (p *Pipeline) Format(ctx context.Context, input, output, topicID string, startNumber int) error {
	run := p.begin(models.StepNames[models.StepFormatting], input, output)

	if err := ctx.Err(); err != nil {
		return run.end(ledger.Outcome{}, err)
	}

	set, err := schema.LoadQuestionSet(input, run.logger, schema.KindSolutions)
	if err != nil {
		return run.end(ledger.Outcome{}, fmt.Errorf("%w: %w", ErrInput, err))
	}
	run.track()

	nodes, err := packing.Pack(set.Questions, packing.Options{
		TopicID:     topicID,
		StartNumber: startNumber,
		Min:         p.cfg.Packing.MinParts,
		Max:         p.cfg.Packing.MaxParts,
		Layer:       p.cfg.Formatting.Layer,
		Difficulty:  p.cfg.Formatting.Difficulty,
	})
	if err != nil {
		return run.end(ledger.Outcome{QuestionsIn: len(set.Questions)}, fmt.Errorf("%w: %w", ErrInput, err))
	}

	diags := markup.ValidateNodes(nodes)
	for _, d := range diags {
		run.logger.Warn("Markup problem", "diagnostic", d.String())
	}
	p.metrics.AddMarkupDiagnostics(len(diags))

	if err := writer.WriteDocument(output, &models.NodeSet{
		Schema:  schema.KindNodes,
		TopicID: topicID,
		Nodes:   nodes,
	}); err != nil {
		return run.end(ledger.Outcome{QuestionsIn: len(set.Questions)}, err)
	}

	p.metrics.SetNodesEmitted(len(nodes))
	p.checkpoints.Clear(filepath.Dir(output))

	run.logger.Info("Nodes written",
		"nodes", len(nodes),
		"parts", set.TotalParts(),
		"markup_diagnostics", len(diags),
		"output", output)
	return run.end(ledger.Outcome{QuestionsIn: len(set.Questions), QuestionsOut: len(set.Questions)}, nil)
}
