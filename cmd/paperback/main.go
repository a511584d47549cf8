// paperback stores files on paper as erasure-coded QR codes.
package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tunnelmesh/paperback/internal/config"
	"github.com/tunnelmesh/paperback/internal/metrics"
	"github.com/tunnelmesh/paperback/internal/tracing"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfgFile        string
	logLevel       string
	metricsFile    string
	traceFile      string
	overrideCommit string

	recorder *tracing.Recorder

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var appMetrics = sync.OnceValue(func() *metrics.Metrics {
	return metrics.InitMetrics(Version, Commit)
})

func main() {
	if err := execute(os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("paperback failed")
		os.Exit(1)
	}
}

// execute runs the command line args and writes the trace and metrics files
// if requested, even when the command fails.
func execute(args []string) error {
	appMetrics()

	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	if recorder != nil {
		if werr := recorder.Dump(traceFile); werr != nil {
			log.Warn().Err(werr).Msg("failed to write trace")
		}
		recorder.Stop()
		recorder = nil
	}
	if metricsFile != "" {
		if werr := metrics.WriteTextfile(metricsFile); werr != nil {
			log.Warn().Err(werr).Msg("failed to write metrics")
		}
	}
	return err
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "paperback",
		Short: "paperback - paper backups of files as QR codes",
		Long: `paperback encodes a file into pages of QR codes that can be printed and
later scanned back into the original file, even when some codes are lost.

Every page carries erasure-coded shards of the file plus a copy of the
document metadata. Any set of pages holding enough distinct shards is enough
to restore the file; the exact number is printed by "paperback create".

QUICK START:

  # Encode secret.key into secret-001.png, secret-002.png, ...
  paperback create secret.key secret

  # Scan the printed pages and restore the file
  paperback restore secret.key scan-*.png

For more help on any command, use: paperback <command> --help`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.paperback/config.yaml or ./paperback.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace-file", "", "write a runtime execution trace to this file on exit")

	// Hidden: the build tag is hashed into every document, so overriding it
	// is only useful to reproduce or restore documents from other builds.
	rootCmd.PersistentFlags().StringVar(&overrideCommit, "override-commit", defaultBuildTag(), "build tag hashed into documents")
	_ = rootCmd.PersistentFlags().MarkHidden("override-commit")

	rootCmd.AddCommand(newCreateCmd())
	rootCmd.AddCommand(newRestoreCmd())
	rootCmd.AddCommand(newPlanCmd())

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "paperback %s\n", Version)
			_, _ = fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			_, _ = fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

func defaultBuildTag() string {
	if Commit != "unknown" {
		return Commit
	}
	return Version
}

// loadConfig sets up logging and loads the config file. A --log-level given
// on the command line wins over the config file.
func loadConfig(cmd *cobra.Command, args []string) error {
	setupLogging()

	loaded, path, err := config.Resolve(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	if !cmd.Flags().Changed("log-level") {
		config.ApplyLogLevel(loaded.LogLevel)
	}
	if path != "" {
		log.Debug().Str("path", path).Msg("config loaded")
	}
	cfg = loaded

	if traceFile != "" && recorder == nil {
		recorder, err = tracing.Start(0)
		if err != nil {
			return err
		}
	}
	return nil
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// observe records the duration of operation since start.
func observe(operation string, start time.Time) {
	appMetrics().OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
