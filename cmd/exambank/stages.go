package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lamim/exambank/internal/api"
	"github.com/lamim/exambank/internal/checkpoint"
	"github.com/lamim/exambank/internal/config"
	"github.com/lamim/exambank/internal/metrics"
	"github.com/lamim/exambank/internal/orchestrator"
	"github.com/lamim/exambank/internal/writer"
)

// session is the per-invocation state shared by the stage commands
type session struct {
	logger    *slog.Logger
	logFile   *os.File
	collector *metrics.Collector
	pipeline  *orchestrator.Pipeline
}

// newSession loads configuration, opens the log file in outDir and builds
// the pipeline. Credentials are only resolved when the command talks to the
// model service.
func newSession(cmd *cobra.Command, outDir string, needsModel bool) (*session, error) {
	if envFile != "" {
		n, err := config.LoadEnvFile(envFile)
		switch {
		case err == nil:
			if verbose {
				fmt.Fprintf(os.Stderr, "Loaded %d variables from %s\n", n, envFile)
			}
		case cmd.Flags().Changed("env-file") || !os.IsNotExist(err):
			fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
		}
	}

	cfg, err := config.Load(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger, logFile, err := writer.SetupLogger(outDir, logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	logger.Info("exambank starting",
		"version", Version,
		"command", cmd.Name(),
		"config", configPath,
		"output_dir", outDir)

	collector := metrics.NewCollector(logger)
	var service api.Service
	if needsModel {
		service, err = api.NewService(cmd.Context(), cfg, config.LoadSecrets(), logger, collector)
		if err != nil {
			closeLog(logFile)
			return nil, err
		}
	}

	pipeline := orchestrator.New(cfg, service, checkpoint.NewStore(logger), collector, logger).
		WithProgress(os.Stderr)
	if noLedger {
		pipeline = pipeline.WithoutLedger()
	}

	return &session{
		logger:    logger,
		logFile:   logFile,
		collector: collector,
		pipeline:  pipeline,
	}, nil
}

func (s *session) close() {
	if metricsFile != "" {
		if err := s.collector.WriteTextfile(metricsFile); err != nil {
			s.logger.Warn("Failed to write metrics", "error", err)
		}
	}
	closeLog(s.logFile)
}

func closeLog(f *os.File) {
	if f != nil {
		_ = f.Sync()
		_ = f.Close()
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	if err := requireInput(args[0]); err != nil {
		return err
	}
	s, err := newSession(cmd, filepath.Dir(args[1]), true)
	if err != nil {
		return err
	}
	defer s.close()
	return s.pipeline.Extract(cmd.Context(), args[0], args[1])
}

func runFilter(cmd *cobra.Command, args []string) error {
	removalLog := writer.RemovedPathFor(args[1])
	if len(args) == 3 {
		removalLog = args[2]
	}

	if err := requireInput(args[0]); err != nil {
		return err
	}
	s, err := newSession(cmd, filepath.Dir(args[1]), true)
	if err != nil {
		return err
	}
	defer s.close()
	return s.pipeline.Filter(cmd.Context(), args[0], args[1], removalLog)
}

func runSolve(cmd *cobra.Command, args []string) error {
	if err := requireInput(args[0]); err != nil {
		return err
	}
	s, err := newSession(cmd, filepath.Dir(args[1]), true)
	if err != nil {
		return err
	}
	defer s.close()
	return s.pipeline.Solve(cmd.Context(), args[0], args[1])
}

func runFormat(cmd *cobra.Command, args []string) error {
	start, err := parseStartNode(args[3])
	if err != nil {
		return err
	}

	if err := requireInput(args[0]); err != nil {
		return err
	}
	s, err := newSession(cmd, filepath.Dir(args[1]), false)
	if err != nil {
		return err
	}
	defer s.close()
	return s.pipeline.Format(cmd.Context(), args[0], args[1], args[2], start)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if startNode < 0 {
		return fmt.Errorf("%w: --start-node must not be negative", orchestrator.ErrInput)
	}

	if err := requireInput(args[0]); err != nil {
		return err
	}
	s, err := newSession(cmd, args[1], true)
	if err != nil {
		return err
	}
	defer s.close()
	return s.pipeline.Run(cmd.Context(), args[0], args[1], topicID, startNode)
}

// requireInput rejects a missing input before anything is created in the
// output directory
func requireInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", orchestrator.ErrInput, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", orchestrator.ErrInput, path)
	}
	return nil
}

func parseStartNode(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: start node must be a non-negative integer (got %q)", orchestrator.ErrInput, arg)
	}
	return n, nil
}
