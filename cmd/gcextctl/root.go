package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/joshuapare/gcext/internal/logger"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "gcextctl",
	Short: "Exercise the gc extension layer",
	Long: `gcextctl drives the collector and its extension hooks with synthetic
workloads: a foreign stack simulation and a randomized interval tracker
workload. Both validate their results and print summary counters.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(stdout, format, args...)
	}
}

// stdout is where command output goes; tests swap it for a buffer.
var stdout io.Writer = os.Stdout

// printJSON writes the output of fn followed by a newline.
func printJSON(fn func(w *jwriter.Writer)) error {
	w := jwriter.NewWriter()
	fn(&w)
	if err := w.Error(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(stdout, "%s\n", w.Bytes())
	return err
}

// newLogger returns the collector logger selected by the global flags.
// Verbose output goes to stderr so it does not mix with --json.
func newLogger() *slog.Logger {
	if !verbose || quiet {
		return logger.Discard()
	}
	return logger.New(logger.Options{Enabled: true, Level: slog.LevelDebug, Output: os.Stderr})
}
