package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lamim/exambank/internal/config"
	"github.com/lamim/exambank/internal/orchestrator"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Exit codes
const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

var (
	configPath  string
	envFile     string
	metricsFile string
	verbose     bool
	noLedger    bool
	topicID     string
	startNode   int
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "exambank",
		Short: "exambank - exam document to question bank pipeline",
		Long: `exambank turns a source exam document into a grouped question bank
using a generative model service. The pipeline has four stages:

1. extract  - pull every question and its parts out of the document
2. filter   - drop questions that cannot stand alone
3. solve    - add titles, intros and step-by-step guidelines in batches
4. format   - group questions into nodes and write the final bank

Each stage reads and writes files, so any stage can be rerun on its own.
Exit status is 0 on success, 2 when some batches failed and 1 otherwise.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", config.DefaultPath, "Path to configuration file")
	pf.StringVar(&envFile, "env-file", ".env", "Path to environment file")
	pf.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&noLedger, "no-ledger", false, "Do not record runs in the output directory's run history")

	extractCmd := &cobra.Command{
		Use:   "extract <source> <output>",
		Short: "Extract questions from a source document",
		Args:  cobra.ExactArgs(2),
		RunE:  runExtract,
	}

	filterCmd := &cobra.Command{
		Use:   "filter <input> <output> [removal-log]",
		Short: "Remove questions that cannot stand alone",
		Long: `Remove questions that depend on figures, earlier answers or other
context. Removed questions and their reasons are written to the removal log,
which defaults to <output stem>.removed.json.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: runFilter,
	}

	solveCmd := &cobra.Command{
		Use:   "solve <input> <output>",
		Short: "Generate titles, intros and step-by-step guidelines",
		Long: `Generate solutions in batches of five questions. A failing batch does
not stop the run: the output holds every successful batch and the failed ones
are listed in <output stem>.failed_batches.json.`,
		Args: cobra.ExactArgs(2),
		RunE: runSolve,
	}

	formatCmd := &cobra.Command{
		Use:   "format <input> <output> <topic-id> <start-node>",
		Short: "Group solved questions into nodes",
		Long: `Group solved questions into nodes and write the final question bank.
The output is YAML unless its name ends in .json.`,
		Args: cobra.ExactArgs(4),
		RunE: runFormat,
	}

	runCmd := &cobra.Command{
		Use:   "run <source> <output-dir>",
		Short: "Run every stage, resuming from the last checkpoint",
		Args:  cobra.ExactArgs(2),
		RunE:  runPipeline,
	}
	runCmd.Flags().StringVar(&topicID, "topic", "", "Topic id used in node ids (required)")
	runCmd.Flags().IntVar(&startNode, "start-node", 1, "Number of the first node")
	_ = runCmd.MarkFlagRequired("topic")

	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage checkpoints",
		Long:  "Inspect or remove the resume checkpoint of an output directory",
	}
	checkpointCmd.AddCommand(&cobra.Command{
		Use:   "show <dir>",
		Short: "Show the checkpoint of an output directory",
		Args:  cobra.ExactArgs(1),
		RunE:  showCheckpoint,
	})
	checkpointCmd.AddCommand(&cobra.Command{
		Use:   "clear <dir>",
		Short: "Remove the checkpoint so the next run starts over",
		Args:  cobra.ExactArgs(1),
		RunE:  clearCheckpoint,
	})

	historyCmd := &cobra.Command{
		Use:   "history <dir>",
		Short: "List the stage runs recorded in an output directory",
		Args:  cobra.ExactArgs(1),
		RunE:  showHistory,
	}
	historyCmd.Flags().Int("limit", 20, "Number of runs to show (0 for all)")

	validateCmd := &cobra.Command{
		Use:   "validate <artifact>",
		Short: "Report likely math markup mistakes in an artifact",
		Args:  cobra.ExactArgs(1),
		RunE:  validateArtifact,
	}

	rootCmd.AddCommand(extractCmd, filterCmd, solveCmd, formatCmd, runCmd,
		checkpointCmd, historyCmd, validateCmd)
	return rootCmd
}

// exitCode maps an error to the process exit status. Partial failure is
// checked first so an interrupted solve still reports what it wrote.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, orchestrator.ErrPartialFailure):
		return exitPartial
	default:
		return exitFatal
	}
}
