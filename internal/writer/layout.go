package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact names used by the run command inside its output directory
const (
	RawFilename       = "raw_questions.json"
	FilteredFilename  = "filtered_questions.json"
	RemovedFilename   = "removed_questions.json"
	SolutionsFilename = "solutions.json"
	NodesFilename     = "nodes.yaml"
)

// Layout names the artifacts of a full pipeline run in one directory
type Layout struct {
	Dir string
}

// NewLayout validates dir and creates it if needed
func NewLayout(dir string) (*Layout, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	clean := filepath.Clean(dir)
	if info, err := os.Stat(clean); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("output path %s exists and is not a directory", clean)
	}
	if err := os.MkdirAll(clean, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Layout{Dir: clean}, nil
}

func (l *Layout) RawPath() string       { return filepath.Join(l.Dir, RawFilename) }
func (l *Layout) FilteredPath() string  { return filepath.Join(l.Dir, FilteredFilename) }
func (l *Layout) RemovedPath() string   { return filepath.Join(l.Dir, RemovedFilename) }
func (l *Layout) SolutionsPath() string { return filepath.Join(l.Dir, SolutionsFilename) }
func (l *Layout) NodesPath() string     { return filepath.Join(l.Dir, NodesFilename) }

// ManifestPath returns the failed-batch manifest location for an output file:
// the output's stem with a .failed_batches.json suffix, next to it.
func ManifestPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+".failed_batches.json")
}

// RemovedPathFor returns the default removal log location for a filter output
func RemovedPathFor(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+".removed.json")
}
