package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/wethinkt/go-cdrintel/internal/i18n"
	"github.com/wethinkt/go-cdrintel/internal/lookup"
)

var cellsCmd = &cobra.Command{
	Use:   "cells",
	Short: "Manage the local cell tower database",
	Long: `Manage the local cell tower database used to resolve coordinates for
records that carry a cell id but no position.

Examples:
  cdrintel cells import 404.csv.gz     # OpenCelliD country export
  cdrintel cells import towers.csv     # cell_id,latitude,longitude[,description]`,
}

var cellsImportCmd = &cobra.Command{
	Use:   "import <csv>",
	Short: "Import cell positions from a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCellsImport,
}

func init() {
	cellsCmd.AddCommand(cellsImportCmd)
}

func runCellsImport(cmd *cobra.Command, args []string) error {
	path, err := cfg.CellDBPath()
	if err != nil {
		return err
	}
	db, err := lookup.OpenCellDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(args[0]), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	n, err := db.ImportCSV(ctx, r)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, i18n.Tn("cmd.cells.imported",
		"Imported {{.Count}} cell", "Imported {{.Count}} cells", n))
	return nil
}
