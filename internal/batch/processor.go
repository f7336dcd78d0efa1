package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/lamim/exambank/internal/metrics"
	"github.com/lamim/exambank/internal/util"
	"github.com/lamim/exambank/pkg/models"
)

// DefaultSize is the number of questions sent to the model service per call
const DefaultSize = 5

// ErrCountMismatch is returned when a batch comes back with a different
// number of questions than were sent.
var ErrCountMismatch = errors.New("batch result count mismatch")

// Batch is a contiguous slice of the input question list
type Batch struct {
	Index   int
	Offset  int // 0-based position of the first record in the full list
	Records []models.QuestionRecord
}

// FirstQuestion returns the 1-based number of the first question in the batch
func (b Batch) FirstQuestion() int {
	return b.Offset + 1
}

// LastQuestion returns the 1-based number of the last question in the batch
func (b Batch) LastQuestion() int {
	return b.Offset + len(b.Records)
}

// Partition splits records into consecutive batches of size; the last batch
// may be smaller.
func Partition(records []models.QuestionRecord, size int) []Batch {
	if size < 1 {
		size = DefaultSize
	}

	batches := make([]Batch, 0, (len(records)+size-1)/size)
	for offset := 0; offset < len(records); offset += size {
		end := min(offset+size, len(records))
		batches = append(batches, Batch{
			Index:   len(batches),
			Offset:  offset,
			Records: records[offset:end],
		})
	}
	return batches
}

// Func processes one batch and returns its resulting records
type Func func(ctx context.Context, b Batch) ([]models.QuestionRecord, error)

// Result is the accumulated outcome of a processor run
type Result struct {
	Records      []models.QuestionRecord
	Failures     []models.FailedBatch
	TotalBatches int
}

// Failed reports whether any batch failed
func (r Result) Failed() bool {
	return len(r.Failures) > 0
}

// FailedQuestions counts the questions held by failed batches
func (r Result) FailedQuestions() int {
	total := 0
	for _, f := range r.Failures {
		total += f.QuestionCount
	}
	return total
}

// Processor runs batches strictly one after another. A failing batch is
// recorded and the run continues with the next one.
type Processor struct {
	stage    string
	size     int
	logger   *slog.Logger
	metrics  *metrics.Collector
	progress io.Writer
}

// NewProcessor creates a processor for the named stage
func NewProcessor(stage string, logger *slog.Logger, collector *metrics.Collector) *Processor {
	return &Processor{
		stage:    stage,
		size:     DefaultSize,
		logger:   logger.With("component", "batch", "stage", stage),
		metrics:  collector,
		progress: io.Discard,
	}
}

// WithSize overrides the batch size
func (p *Processor) WithSize(size int) *Processor {
	if size > 0 {
		p.size = size
	}
	return p
}

// WithProgress sends a progress bar to w
func (p *Processor) WithProgress(w io.Writer) *Processor {
	if w == nil {
		w = io.Discard
	}
	p.progress = w
	return p
}

// Size returns the configured batch size
func (p *Processor) Size() int {
	return p.size
}

// Run processes every batch of records with fn. The returned error is only
// non-nil when ctx is cancelled; in that case the interrupted batch and every
// batch after it are recorded as failures so no question goes missing.
func (p *Processor) Run(ctx context.Context, records []models.QuestionRecord, fn Func) (Result, error) {
	batches := Partition(records, p.size)
	result := Result{TotalBatches: len(batches)}

	bar := progressbar.NewOptions(len(batches),
		progressbar.OptionSetWriter(p.progress),
		progressbar.OptionSetDescription(fmt.Sprintf("%s batches", p.stage)),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	p.logger.Info("Processing batches",
		"questions", len(records),
		"batches", len(batches),
		"batch_size", p.size)

	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			p.abandon(&result, batches[i:], err)
			return result, err
		}

		start := time.Now()
		out, err := fn(ctx, b)
		if err == nil && len(out) != len(b.Records) {
			err = fmt.Errorf("%w: sent %d, received %d", ErrCountMismatch, len(b.Records), len(out))
		}
		_ = bar.Add(1)

		if err != nil {
			p.metrics.IncrementBatch(p.stage, false)
			p.logger.Error("Batch failed",
				"batch", b.Index,
				"questions", fmt.Sprintf("%d-%d", b.FirstQuestion(), b.LastQuestion()),
				"duration", time.Since(start),
				"error", err)
			result.Failures = append(result.Failures, failure(b, err))

			if ctxErr := ctx.Err(); ctxErr != nil {
				p.abandon(&result, batches[i+1:], ctxErr)
				return result, ctxErr
			}
			continue
		}

		p.metrics.IncrementBatch(p.stage, true)
		p.logger.Debug("Batch complete",
			"batch", b.Index,
			"questions", fmt.Sprintf("%d-%d", b.FirstQuestion(), b.LastQuestion()),
			"duration", time.Since(start))
		result.Records = append(result.Records, out...)
	}

	_ = bar.Finish()

	if result.Failed() {
		p.logger.Warn("Batches failed",
			"failed_batches", len(result.Failures),
			"total_batches", result.TotalBatches,
			"failed_questions", result.FailedQuestions())
	}

	return result, nil
}

func (p *Processor) abandon(result *Result, rest []Batch, cause error) {
	for _, b := range rest {
		result.Failures = append(result.Failures, failure(b, fmt.Errorf("not processed: %w", cause)))
	}
	if len(rest) > 0 {
		p.logger.Warn("Run interrupted, remaining batches recorded as failed", "batches", len(rest))
	}
}

func failure(b Batch, err error) models.FailedBatch {
	return models.FailedBatch{
		BatchIndex:    b.Index,
		FirstQuestion: b.FirstQuestion(),
		LastQuestion:  b.LastQuestion(),
		QuestionCount: len(b.Records),
		Error:         err.Error(),
		Diagnostics:   util.DiagnosticPathsOf(err),
		Questions:     append([]models.QuestionRecord(nil), b.Records...),
	}
}
