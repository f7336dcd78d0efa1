package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NoBatch marks diagnostics that belong to a whole stage rather than a batch
const NoBatch = -1

// DiagnosticFiles are the two files written beside a stage output when a
// model response needs human attention.
type DiagnosticFiles struct {
	RawResponse   string
	RepairAttempt string
}

// DiagnosticPaths derives diagnostic file names from a stage output path.
//
//	out/solutions.json, NoBatch -> out/solutions.raw_response.txt
//	                               out/solutions.repair_attempt.txt
//	out/solutions.json, 3       -> out/solutions.batch-03.raw_response.txt
//	                               out/solutions.batch-03.repair_attempt.txt
//
// Batch indices are 0-based and zero-padded to two digits.
func DiagnosticPaths(outputPath string, batchIndex int) DiagnosticFiles {
	dir := filepath.Dir(outputPath)
	stem := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	if batchIndex >= 0 {
		stem = fmt.Sprintf("%s.batch-%02d", stem, batchIndex)
	}
	return DiagnosticFiles{
		RawResponse:   filepath.Join(dir, stem+".raw_response.txt"),
		RepairAttempt: filepath.Join(dir, stem+".repair_attempt.txt"),
	}
}

// DiagnosticError wraps a failure whose evidence was persisted to disk
type DiagnosticError struct {
	Paths []string
	Cause error
}

func (e *DiagnosticError) Error() string {
	return fmt.Sprintf("%v (diagnostics: %s)", e.Cause, strings.Join(e.Paths, ", "))
}

func (e *DiagnosticError) Unwrap() error {
	return e.Cause
}

// DiagnosticPathsOf returns the persisted paths carried by err, if any
func DiagnosticPathsOf(err error) []string {
	var de *DiagnosticError
	if errors.As(err, &de) {
		return de.Paths
	}
	return nil
}

// WriteRawResponse stores the unmodified model response
func WriteRawResponse(files DiagnosticFiles, response string) error {
	if err := os.MkdirAll(filepath.Dir(files.RawResponse), 0755); err != nil {
		return fmt.Errorf("failed to create diagnostics directory: %w", err)
	}
	if err := os.WriteFile(files.RawResponse, []byte(response), 0644); err != nil {
		return fmt.Errorf("failed to write raw response: %w", err)
	}
	return nil
}

// PersistRepairFailure writes both the original and last attempted text of a
// repair failure and returns a DiagnosticError naming them. Errors that are
// not repair failures are returned unchanged.
func PersistRepairFailure(files DiagnosticFiles, err error) error {
	var re *RepairError
	if !errors.As(err, &re) {
		return err
	}

	if werr := WriteRawResponse(files, re.Original); werr != nil {
		return fmt.Errorf("%w (and diagnostics could not be saved: %v)", err, werr)
	}
	if werr := os.WriteFile(files.RepairAttempt, []byte(re.LastAttempt), 0644); werr != nil {
		return fmt.Errorf("%w (and repair attempt could not be saved: %v)", err, werr)
	}

	return &DiagnosticError{
		Paths: []string{files.RawResponse, files.RepairAttempt},
		Cause: err,
	}
}
