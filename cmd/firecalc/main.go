package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ukfire/firecalc/internal/config"
	"github.com/ukfire/firecalc/internal/history"
	"github.com/ukfire/firecalc/internal/output"
	"github.com/ukfire/firecalc/internal/simulation"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagData         string
	flagFormat       string
	flagTrajectories string
	flagParallel     bool
	flagSeed         int64
	flagVerbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "firecalc",
	Short: "UK early-retirement feasibility calculator",
	Long:  "Monte Carlo retirement analysis over historical UK market returns: finds the earliest viable retirement age per portfolio allocation.",
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [plan-file]",
	Short: "Run the full analysis for a plan file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(flagVerbose)

		analysis, err := config.LoadFromFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to load plan: %w", err)
		}

		dataPath := analysis.DataPath
		if flagData != "" {
			dataPath = flagData
		}
		if dataPath == "" {
			dataPath = "data"
		}
		series, err := history.NewLoader(dataPath).Load()
		if err != nil {
			return fmt.Errorf("failed to load historical returns: %w", err)
		}
		log.Info().Int("years", series.Len()).Str("path", dataPath).Msg("historical returns loaded")

		simCfg := analysis.Simulation
		if cmd.Flags().Changed("parallel") {
			simCfg.Parallel = flagParallel
		}
		if cmd.Flags().Changed("seed") {
			simCfg.Seed = flagSeed
		}

		orch, err := simulation.NewOrchestrator(series, analysis.GuardRails, analysis.Taxes, analysis.Plan, simCfg, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		started := time.Now()
		results, err := orch.Analyze(ctx, analysis.Allocations)
		if err != nil {
			log.Warn().Err(err).Msg("analysis interrupted; results are partial")
		}
		log.Info().Dur("elapsed", time.Since(started)).Int("allocations", len(results)).Msg("analysis complete")

		report := &output.Report{
			Plan:        analysis.Plan,
			Results:     results,
			GeneratedAt: time.Now(),
		}
		formatter, err := output.NewFormatter(flagFormat)
		if err != nil {
			return err
		}
		rendered, err := formatter.Format(report)
		if err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
		if _, err := os.Stdout.Write(rendered); err != nil {
			return err
		}

		if flagTrajectories != "" {
			f, err := os.Create(flagTrajectories)
			if err != nil {
				return fmt.Errorf("failed to create trajectories file: %w", err)
			}
			defer f.Close()
			if err := output.WriteTrajectories(f, report); err != nil {
				return fmt.Errorf("failed to write trajectories: %w", err)
			}
			log.Info().Str("file", flagTrajectories).Msg("trajectories written")
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "firecalc %s (commit %s, built %s)\n", version, commit, date)
		if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
			fmt.Fprintln(os.Stdout, "go:", bi.GoVersion)
		}
	},
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func init() {
	analyzeCmd.Flags().StringVar(&flagData, "data", "", "directory of historical CSV files (overrides the plan file)")
	analyzeCmd.Flags().StringVarP(&flagFormat, "format", "f", "console", "output format: console, csv, json")
	analyzeCmd.Flags().StringVar(&flagTrajectories, "trajectories", "", "also write per-year trajectory CSV to this file")
	analyzeCmd.Flags().BoolVar(&flagParallel, "parallel", false, "analyze allocations concurrently")
	analyzeCmd.Flags().Int64Var(&flagSeed, "seed", 0, "random seed for reproducible runs (0 = derive from clock)")
	analyzeCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
