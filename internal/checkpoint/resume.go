package checkpoint

import (
	"slices"

	"github.com/lamim/exambank/pkg/models"
)

// Keys used in Checkpoint.Files by the run command
const (
	FileSource    = "source"
	FileRaw       = "raw"
	FileFiltered  = "filtered"
	FileRemoved   = "removed"
	FileSolutions = "solutions"
	FileNodes     = "nodes"
)

// NextStep returns the first step that still has to run. A nil or
// unverifiable checkpoint restarts from extraction.
func NextStep(cp *models.Checkpoint) int {
	if cp == nil || !Verify(cp) {
		return models.StepExtraction
	}
	return cp.Step + 1
}

// IsComplete reports whether the checkpoint marks a finished pipeline
func IsComplete(cp *models.Checkpoint) bool {
	return cp != nil && cp.Step >= models.StepFormatting
}

// MissingFiles lists checkpoint entries whose files no longer exist
func MissingFiles(cp *models.Checkpoint) []string {
	if cp == nil {
		return nil
	}
	var missing []string
	for key, path := range cp.Files {
		if !Verify(&models.Checkpoint{Files: map[string]string{key: path}}) {
			missing = append(missing, key+"="+path)
		}
	}
	slices.Sort(missing)
	return missing
}

// OutputKey returns the Files key holding the artifact a step produces
func OutputKey(step int) string {
	switch step {
	case models.StepExtraction:
		return FileRaw
	case models.StepFiltering:
		return FileFiltered
	case models.StepSolution:
		return FileSolutions
	case models.StepFormatting:
		return FileNodes
	default:
		return ""
	}
}
