package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
	"github.com/wethinkt/go-cdrintel/internal/export"
	"github.com/wethinkt/go-cdrintel/internal/i18n"
)

// Export command flags
var (
	exportFormat  string
	exportOutput  string
	exportSession string
	exportSuspect string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export records as JSON, CSV, KML or XLSX",
	Long: `Export the records of a session or suspect.

Formats:
  json      Record document (default)
  json.gz   Gzip-compressed record document
  csv       One row per record with canonical column names
  kml       Placemarks and a path through located records
  xlsx      Analysis workbook with the summary sheets

Without --output the file is written to the current directory under a
generated name. Use --output - to write to stdout.

Examples:
  cdrintel export --suspect Ravi --format kml
  cdrintel export --session 3f2c... --format csv -o calls.csv
  cdrintel export --suspect Ravi --format json -o - | jq .count`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "output format: json, json.gz, csv, kml or xlsx")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (- for stdout)")
	exportCmd.Flags().StringVar(&exportSession, "session", "", "session id to export")
	exportCmd.Flags().StringVar(&exportSuspect, "suspect", "", "suspect name to export")
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	scope := cdr.Scope{SessionID: exportSession, SuspectName: exportSuspect}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if exportOutput == "-" {
		_, err := a.exporter.Export(ctx, scope, format, stdout)
		return err
	}

	path := exportOutput
	if path == "" {
		path = format.FileName(scope, time.Now())
	}
	n, err := exportToFile(ctx, a.exporter, scope, format, path)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, i18n.Tf("cmd.export.written", "Exported %d records to %s", n, path))
	return nil
}

// exportToFile writes to a temporary file beside path and renames it into
// place once the export succeeded.
func exportToFile(ctx context.Context, e *export.Exporter, scope cdr.Scope, format export.Format, path string) (int, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cdrintel-export-*")
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := e.Export(ctx, scope, format, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return n, nil
}

