// Package ledger keeps a small SQLite history of stage runs per output
// directory, so operators can see what ran, when, and what failed.
package ledger

import (
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lamim/exambank/pkg/models"
)

// Filename is the ledger database kept in each output directory
const Filename = ".exambank_runs.db"

// Run statuses
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// Run is one recorded stage invocation
type Run struct {
	ID            string
	Stage         string
	Status        string
	InputPath     string
	OutputPath    string
	QuestionsIn   int
	QuestionsOut  int
	FailedBatches int
	Error         string
	StartedAt     time.Time
	FinishedAt    *time.Time
}

// Outcome is what a stage reports when it finishes
type Outcome struct {
	Status        string
	QuestionsIn   int
	QuestionsOut  int
	FailedBatches []models.FailedBatch
	Err           error
}

// Ledger wraps the SQLite database of one output directory
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	input_path TEXT,
	output_path TEXT,
	questions_in INTEGER DEFAULT 0,
	questions_out INTEGER DEFAULT 0,
	failed_batches INTEGER DEFAULT 0,
	error_message TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);
CREATE TABLE IF NOT EXISTS batch_failures (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id),
	batch_index INTEGER,
	first_question INTEGER,
	last_question INTEGER,
	error_message TEXT,
	created_at DATETIME
);
`

// Path returns the ledger location for an output directory
func Path(dir string) string {
	return filepath.Join(dir, Filename)
}

// Open opens (creating if needed) the ledger of dir
func Open(dir string, logger *slog.Logger) (*Ledger, error) {
	db, err := sql.Open("sqlite3", Path(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// One writer per output directory; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ledger tables: %w", err)
	}

	return &Ledger{
		db:     db,
		logger: logger.With("component", "ledger"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Start records a new running stage and returns its run ID
func (l *Ledger) Start(stage, input, output string) (string, error) {
	id := uuid.NewString()
	_, err := l.db.Exec(`INSERT INTO runs (id, stage, status, input_path, output_path, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, stage, StatusRunning, input, output, l.now())
	if err != nil {
		return "", fmt.Errorf("failed to record run start: %w", err)
	}
	l.logger.Debug("Run started", "run_id", id, "stage", stage)
	return id, nil
}

// Finish stores the outcome of a run together with its failed batches
func (l *Ledger) Finish(runID string, out Outcome) error {
	errMsg := ""
	if out.Err != nil {
		errMsg = out.Err.Error()
	}
	now := l.now()

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`UPDATE runs SET status = ?, questions_in = ?, questions_out = ?, failed_batches = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		out.Status, out.QuestionsIn, out.QuestionsOut, len(out.FailedBatches), errMsg, now, runID)
	if err != nil {
		return fmt.Errorf("failed to record run outcome: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}

	for _, fb := range out.FailedBatches {
		if _, err := tx.Exec(`INSERT INTO batch_failures (run_id, batch_index, first_question, last_question, error_message, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, fb.BatchIndex, fb.FirstQuestion, fb.LastQuestion, fb.Error, now); err != nil {
			return fmt.Errorf("failed to record batch failure: %w", err)
		}
	}

	return tx.Commit()
}

// List returns the most recent runs first; limit <= 0 returns all of them
func (l *Ledger) List(limit int) ([]Run, error) {
	query := `SELECT id, stage, status, input_path, output_path, questions_in, questions_out, failed_batches, error_message, started_at, finished_at FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var input, output, errMsg sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Stage, &r.Status, &input, &output,
			&r.QuestionsIn, &r.QuestionsOut, &r.FailedBatches, &errMsg, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.InputPath = input.String
		r.OutputPath = output.String
		r.Error = errMsg.String
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FailedBatches returns the batch failures recorded for a run
func (l *Ledger) FailedBatches(runID string) ([]models.FailedBatch, error) {
	rows, err := l.db.Query(`SELECT batch_index, first_question, last_question, error_message FROM batch_failures WHERE run_id = ? ORDER BY batch_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch failures: %w", err)
	}
	defer rows.Close()

	var out []models.FailedBatch
	for rows.Next() {
		var fb models.FailedBatch
		if err := rows.Scan(&fb.BatchIndex, &fb.FirstQuestion, &fb.LastQuestion, &fb.Error); err != nil {
			return nil, fmt.Errorf("failed to scan batch failure: %w", err)
		}
		fb.QuestionCount = fb.LastQuestion - fb.FirstQuestion + 1
		out = append(out, fb)
	}
	return out, rows.Err()
}
