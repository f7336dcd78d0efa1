// Package orchestrator runs the four pipeline stages. Each stage reads its
// input artifact from disk, talks to the model service, writes its output
// artifact atomically and records a checkpoint in the output directory.
package orchestrator

import (
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/exambank/internal/api"
	"github.com/lamim/exambank/internal/checkpoint"
	"github.com/lamim/exambank/internal/config"
	"github.com/lamim/exambank/internal/ledger"
	"github.com/lamim/exambank/internal/metrics"
	"github.com/lamim/exambank/pkg/models"
)

// Pipeline holds everything the stages share. It is built once per process.
type Pipeline struct {
	cfg         *config.Config
	service     api.Service
	checkpoints *checkpoint.Store
	metrics     *metrics.Collector
	logger      *slog.Logger
	progress    io.Writer
	useLedger   bool
}

// New creates a pipeline
func New(
	cfg *config.Config,
	service api.Service,
	checkpoints *checkpoint.Store,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		service:     service,
		checkpoints: checkpoints,
		metrics:     collector,
		logger:      logger.With("component", "orchestrator"),
		progress:    io.Discard,
		useLedger:   true,
	}
}

// WithProgress sends batch progress bars to w
func (p *Pipeline) WithProgress(w io.Writer) *Pipeline {
	if w == nil {
		w = io.Discard
	}
	p.progress = w
	return p
}

// WithoutLedger disables the per-directory run history
func (p *Pipeline) WithoutLedger() *Pipeline {
	p.useLedger = false
	return p
}

// stageRun tracks one stage invocation for metrics and the ledger
type stageRun struct {
	p      *Pipeline
	stage  string
	input  string
	output string
	runID  string
	start  time.Time
	ledger *ledger.Ledger
	logger *slog.Logger
}

func (p *Pipeline) begin(stage, input, output string) *stageRun {
	run := &stageRun{
		p:      p,
		stage:  stage,
		input:  input,
		output: output,
		runID:  uuid.NewString(),
		start:  time.Now(),
	}
	run.logger = p.logger.With("stage", stage, "run_id", run.runID)
	run.logger.Info("Stage started", "input", input, "output", output)
	return run
}

// track records the run in the ledger of the output directory. Stages call
// it once their input has loaded, so a rejected input leaves nothing behind.
func (r *stageRun) track() {
	if !r.p.useLedger || r.ledger != nil {
		return
	}

	dir := filepath.Dir(r.output)
	l, err := ledger.Open(dir, r.p.logger)
	if err != nil {
		r.logger.Warn("Run ledger unavailable", "dir", dir, "error", err)
		return
	}
	id, err := l.Start(r.stage, r.input, r.output)
	if err != nil {
		r.logger.Warn("Failed to record run start", "error", err)
		_ = l.Close()
		return
	}

	r.ledger = l
	r.runID = id
	r.logger = r.p.logger.With("stage", r.stage, "run_id", id)
}

// end records the outcome and passes err through unchanged
func (r *stageRun) end(out ledger.Outcome, err error) error {
	duration := time.Since(r.start)
	r.p.metrics.RecordStage(r.stage, duration, err == nil)

	if out.Status == "" {
		switch {
		case err == nil:
			out.Status = ledger.StatusSucceeded
		case len(out.FailedBatches) > 0:
			out.Status = ledger.StatusPartial
		default:
			out.Status = ledger.StatusFailed
		}
	}
	out.Err = err

	if r.ledger != nil {
		if lerr := r.ledger.Finish(r.runID, out); lerr != nil {
			r.logger.Warn("Failed to record run outcome", "error", lerr)
		}
		if cerr := r.ledger.Close(); cerr != nil {
			r.logger.Warn("Failed to close run ledger", "error", cerr)
		}
	}

	if err != nil {
		r.logger.Error("Stage failed", "duration", duration.Round(time.Millisecond), "error", err)
	} else {
		r.logger.Info("Stage complete",
			"duration", duration.Round(time.Millisecond),
			"questions_in", out.QuestionsIn,
			"questions_out", out.QuestionsOut)
	}
	return err
}

// saveCheckpoint records step in the directory of output, keeping file
// entries from earlier steps of the same directory.
func (p *Pipeline) saveCheckpoint(output string, step int, files map[string]string) {
	dir := filepath.Dir(output)
	merged := make(map[string]string, len(files))
	if prev := p.checkpoints.Load(dir); prev != nil && prev.Step < step {
		maps.Copy(merged, prev.Files)
	}
	maps.Copy(merged, files)
	p.checkpoints.Save(dir, step, models.StepNames[step], merged)
}
