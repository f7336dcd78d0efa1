package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lamim/exambank/internal/checkpoint"
	"github.com/lamim/exambank/internal/ledger"
	"github.com/lamim/exambank/internal/markup"
	"github.com/lamim/exambank/internal/orchestrator"
	"github.com/lamim/exambank/internal/writer"
	"github.com/lamim/exambank/pkg/models"
)

func consoleLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return writer.NewConsoleLogger(os.Stderr, level)
}

// showCheckpoint displays the checkpoint of an output directory
func showCheckpoint(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: output directory not found: %s", orchestrator.ErrInput, dir)
	}

	cp := checkpoint.NewStore(consoleLogger()).Load(dir)
	if cp == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "No usable checkpoint in %s\n", dir)
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checkpoint for: %s\n", dir)
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "Completed step:  %d (%s)\n", cp.Step, cp.StepName)
	fmt.Fprintf(out, "Saved:           %s (%s ago)\n",
		time.UnixMilli(cp.Timestamp).Format("2006-01-02 15:04:05"),
		checkpoint.Age(cp, time.Now()))
	fmt.Fprintf(out, "Version:         %s\n", cp.Version)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Files:")
	keys := make([]string, 0, len(cp.Files))
	for k := range cp.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		status := "ok"
		if _, err := os.Stat(cp.Files[k]); err != nil {
			status = "MISSING"
		}
		fmt.Fprintf(out, "  %-10s %-8s %s\n", k, status, cp.Files[k])
	}
	fmt.Fprintln(out)

	next := checkpoint.NextStep(cp)
	switch {
	case checkpoint.IsComplete(cp):
		fmt.Fprintln(out, "The pipeline is complete.")
	case !checkpoint.Verify(cp):
		fmt.Fprintln(out, "Some files are missing: the next run starts over.")
	default:
		fmt.Fprintf(out, "The next run resumes at step %d (%s).\n", next, models.StepNames[next])
	}
	return nil
}

func clearCheckpoint(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if _, err := os.Stat(checkpoint.Path(dir)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(cmd.OutOrStdout(), "No checkpoint in %s\n", dir)
		return nil
	}
	checkpoint.NewStore(consoleLogger()).Clear(dir)
	fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint removed from %s\n", dir)
	return nil
}

// showHistory lists the stage runs recorded in the ledger of a directory
func showHistory(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if _, err := os.Stat(ledger.Path(dir)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(cmd.OutOrStdout(), "No run history in %s\n", dir)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")

	l, err := ledger.Open(dir, consoleLogger())
	if err != nil {
		return err
	}
	defer l.Close()

	runs, err := l.List(limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-20s %-11s %-10s %6s %6s %7s %s\n", "STARTED", "STAGE", "STATUS", "IN", "OUT", "FAILED", "DURATION")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(out, "%-20s %-11s %-10s %6d %6d %7d %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Stage, r.Status, r.QuestionsIn, r.QuestionsOut, r.FailedBatches, duration)

		if r.Status != ledger.StatusPartial {
			continue
		}
		failed, err := l.FailedBatches(r.ID)
		if err != nil {
			return err
		}
		for _, fb := range failed {
			fmt.Fprintf(out, "    batch %d (questions %d-%d): %s\n",
				fb.BatchIndex, fb.FirstQuestion, fb.LastQuestion, fb.Error)
		}
	}
	return nil
}

// validateArtifact runs the markup checks over every string in a JSON or
// YAML file. Findings are advisory and never change the exit status.
func validateArtifact(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", orchestrator.ErrInput, err)
	}

	var value any
	if err := writer.DecoderFor(path)(data, &value); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %w", orchestrator.ErrInput, path, err)
	}

	out := cmd.OutOrStdout()
	diags := markup.Validate(value)
	for _, d := range diags {
		fmt.Fprintln(out, d.String())
	}
	if len(diags) == 0 {
		fmt.Fprintf(out, "%s: no markup problems found\n", path)
	} else {
		fmt.Fprintf(out, "%s: %d markup problems found\n", path, len(diags))
	}
	return nil
}
