package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lamim/exambank/pkg/models"
)

const (
	// CheckpointFilename is the hidden file kept in each output directory
	CheckpointFilename = ".exambank_checkpoint.json"
	// Version is written into every checkpoint; other versions are ignored
	Version = "1.0"
	// MaxAge is how long a checkpoint stays eligible for resume
	MaxAge = 7 * 24 * time.Hour
)

// Store reads and writes the checkpoint of an output directory. Every
// operation is best effort: I/O problems are logged and treated as "no
// resume state", never returned to the caller.
type Store struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a checkpoint store
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		logger: logger.With("component", "checkpoint"),
		now:    time.Now,
	}
}

// WithClock returns a copy of the store that reads the time from now
func (s *Store) WithClock(now func() time.Time) *Store {
	return &Store{logger: s.logger, now: now}
}

// Path returns the checkpoint location for an output directory
func Path(dir string) string {
	return filepath.Join(dir, CheckpointFilename)
}

// Save overwrites the checkpoint of dir after a stage completed
func (s *Store) Save(dir string, step int, name string, files map[string]string) {
	if files == nil {
		files = map[string]string{}
	}
	cp := &models.Checkpoint{
		Step:      step,
		StepName:  name,
		Timestamp: s.now().UnixMilli(),
		Files:     files,
		Version:   Version,
	}

	if err := writeCheckpoint(dir, cp); err != nil {
		s.logger.Warn("Failed to save checkpoint", "dir", dir, "step", name, "error", err)
		return
	}

	s.logger.Debug("Checkpoint saved", "path", Path(dir), "step", step, "step_name", name)
}

// writeCheckpoint writes to a temp file first, then renames over the target
func writeCheckpoint(dir string, cp *models.Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	checkpointPath := Path(dir)
	tempPath := checkpointPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint: %w", err)
	}

	if err := os.Rename(tempPath, checkpointPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}

	return nil
}

// Load returns the checkpoint of dir, or nil when there is none, when it
// cannot be parsed, has an invalid shape, or is older than MaxAge.
func (s *Store) Load(dir string) *models.Checkpoint {
	checkpointPath := Path(dir)

	data, err := os.ReadFile(checkpointPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to read checkpoint", "path", checkpointPath, "error", err)
		}
		return nil
	}

	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		s.logger.Warn("Ignoring malformed checkpoint", "path", checkpointPath, "error", err)
		return nil
	}

	if err := validateShape(&cp); err != nil {
		s.logger.Warn("Ignoring invalid checkpoint", "path", checkpointPath, "error", err)
		return nil
	}

	age := s.now().Sub(time.UnixMilli(cp.Timestamp))
	if age > MaxAge {
		s.logger.Warn("Ignoring stale checkpoint",
			"path", checkpointPath,
			"age", Age(&cp, s.now()),
			"max_age", MaxAge)
		return nil
	}

	s.logger.Info("Checkpoint loaded",
		"step", cp.Step,
		"step_name", cp.StepName,
		"age", Age(&cp, s.now()))

	return &cp
}

func validateShape(cp *models.Checkpoint) error {
	if cp.Step < models.StepExtraction || cp.Step > models.StepFormatting {
		return fmt.Errorf("step %d out of range", cp.Step)
	}
	if cp.StepName == "" {
		return fmt.Errorf("missing stepName")
	}
	if cp.Timestamp <= 0 {
		return fmt.Errorf("missing timestamp")
	}
	if cp.Files == nil {
		return fmt.Errorf("missing files")
	}
	if cp.Version != Version {
		return fmt.Errorf("unsupported version %q", cp.Version)
	}
	return nil
}

// Verify reports whether every file referenced by the checkpoint still exists
func Verify(cp *models.Checkpoint) bool {
	if cp == nil {
		return false
	}
	for _, path := range cp.Files {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// Clear removes the checkpoint of dir. A missing file is not an error.
func (s *Store) Clear(dir string) {
	checkpointPath := Path(dir)
	if err := os.Remove(checkpointPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to clear checkpoint", "path", checkpointPath, "error", err)
		return
	}
	s.logger.Debug("Checkpoint cleared", "path", checkpointPath)
}

// Age formats the time elapsed since the checkpoint was written
func Age(cp *models.Checkpoint, now time.Time) string {
	d := now.Sub(time.UnixMilli(cp.Timestamp))
	if d < 0 {
		d = 0
	}

	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	minutes := int(d/time.Minute) % 60
	seconds := int(d/time.Second) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
