// Package cmd provides the CLI commands for cdrintel.
package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime/pprof"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wethinkt/go-cdrintel/internal/applog"
	"github.com/wethinkt/go-cdrintel/internal/config"
	"github.com/wethinkt/go-cdrintel/internal/i18n"
)

// global flags
var (
	profileFile *os.File // held open for profiling
	logPath     string
	verbose     bool
	outputJSON  bool
	noColor     bool
)

// cfg is the loaded configuration, available to every command after
// PersistentPreRunE.
var cfg config.Config

// stdout is where commands write their results.
var stdout io.Writer = os.Stdout

// rootCmd is the root command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "cdrintel",
	Short: "Call detail record ingestion and forensic analytics",
	Long: `cdrintel ingests call detail records from heterogeneous operator exports
(CSV, TSV, XLSX, JSON) into a canonical store and runs forensic analytics
over them: contact networks, activity heatmaps, device timelines, movement,
co-location, anomalies and geofence alerts.

Commands:
  ingest    Ingest CDR files
  watch     Auto-ingest files dropped into a directory
  serve     Start the HTTP API
  analyze   Run an analyzer over a session or suspect
  sessions  List ingestion sessions
  export    Export records as JSON, CSV, KML or XLSX
  geofence  Manage geofences
  cells     Manage the local cell tower database
  device    Decode an IMEI

Examples:
  cdrintel ingest --suspect Ravi airtel_march.xlsx
  cdrintel analyze anomalies --suspect Ravi
  cdrintel serve --port 8790 --token s3cret`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Start pprof profiling if CDRINTEL_PROFILE is set
		if profilePath := os.Getenv("CDRINTEL_PROFILE"); profilePath != "" {
			f, err := os.Create(profilePath)
			if err != nil {
				return fmt.Errorf("create profile file: %w", err)
			}
			profileFile = f

			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				profileFile = nil
				return fmt.Errorf("start CPU profile: %w", err)
			}
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		level := applog.ParseLevel(cfg.LogLevel)
		if verbose {
			level = applog.LevelDebug
		}
		if err := applog.Init(logPath, level); err != nil {
			return err
		}

		i18n.Init(i18n.ResolveLocale(cfg.Lang))

		if noColor || !term.IsTerminal(int(os.Stdout.Fd())) {
			color.NoColor = true
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		// Stop CPU profiling
		if profileFile != nil {
			pprof.StopCPUProfile()
			profileFile.Close()
			profileFile = nil
		}
		applog.Log.Close()
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "write log to file")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(geofenceCmd)
	rootCmd.AddCommand(cellsCmd)
	rootCmd.AddCommand(deviceCmd)
	rootCmd.AddCommand(languageCmd)
	rootCmd.AddCommand(versionCmd)
}
