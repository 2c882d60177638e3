package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wethinkt/go-cdrintel/internal/i18n"
	"github.com/wethinkt/go-cdrintel/internal/ingest"
)

// Ingest command flags
var (
	ingestSuspect string
	ingestSession string
	ingestSubject string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest CDR files into the store",
	Long: `Ingest one or more CDR files. Delimited text (.csv, .tsv, .txt),
spreadsheets (.xlsx, .xlsm) and JSON exports are accepted, optionally
gzip-compressed (.gz). The operator layout is detected from the header row.

Every file becomes its own ingestion session unless --session is given.

Examples:
  cdrintel ingest --suspect Ravi airtel_march.xlsx
  cdrintel ingest --suspect Ravi --session case42 jio.csv vi.csv
  cdrintel ingest --json export.json.gz`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestSuspect, "suspect", "s", "", "suspect name to attach to the records")
	ingestCmd.Flags().StringVar(&ingestSession, "session", "", "session id (default: generated per file)")
	ingestCmd.Flags().StringVar(&ingestSubject, "subject", "", "subscriber number used for direction inference (default: detected)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := ingest.Options{
		SuspectName:   ingestSuspect,
		SessionID:     ingestSession,
		SubjectNumber: ingestSubject,
	}

	var results []*ingest.Result
	var failed int
	for _, path := range args {
		res, err := a.pipeline.IngestFile(ctx, path, opts)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", color.RedString("✗"), path, err)
			continue
		}
		results = append(results, res)
		if !outputJSON {
			printIngestResult(path, res)
		}
	}

	if outputJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func printIngestResult(path string, res *ingest.Result) {
	fmt.Fprintf(stdout, "%s %s\n", color.GreenString("✓"), path)
	fmt.Fprintln(stdout, "  "+i18n.Tf("cmd.ingest.inserted", "Inserted %d records into session %s", res.RecordsInserted, res.SessionID))
	if res.SuspectName != "" {
		fmt.Fprintln(stdout, "  "+i18n.Tf("cmd.ingest.suspect", "Suspect: %s", res.SuspectName))
	}
	fmt.Fprintln(stdout, "  "+i18n.Tf("cmd.ingest.vendor", "Format: %s (%d columns mapped)",
		res.FormatDetected.Vendor, len(res.FormatDetected.ColumnMapping)))

	v := res.Validation
	if v.Rejected() > 0 {
		fmt.Fprintln(stdout, "  "+color.YellowString(i18n.Tf("cmd.ingest.rejected",
			"Rejected %d rows (missing number: %d, missing time: %d, other: %d)",
			v.Rejected(), v.MissingMSISDN, v.MissingTime, v.Other)))
	}
	if res.CoordinatesResolved > 0 {
		fmt.Fprintln(stdout, "  "+i18n.Tf("cmd.ingest.resolved", "Resolved coordinates for %d records", res.CoordinatesResolved))
	}
	if res.GeofenceAlerts > 0 {
		fmt.Fprintln(stdout, "  "+color.RedString(i18n.Tn("cmd.ingest.alerts",
			"{{.Count}} geofence alert", "{{.Count}} geofence alerts", res.GeofenceAlerts)))
	}
}
