package models

// Pipeline steps in execution order
const (
	StepExtraction = 1
	StepFiltering  = 2
	StepSolution   = 3
	StepFormatting = 4
)

// StepNames maps each step to the name stored in checkpoints and logs
var StepNames = map[int]string{
	StepExtraction: "extraction",
	StepFiltering:  "filtering",
	StepSolution:   "solution",
	StepFormatting: "formatting",
}

// Checkpoint records the last stage that completed in an output directory
type Checkpoint struct {
	Step      int               `json:"step"`
	StepName  string            `json:"stepName"`
	Timestamp int64             `json:"timestamp"` // Unix epoch milliseconds
	Files     map[string]string `json:"files"`
	Version   string            `json:"version"`
}
