package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-cdrintel/internal/geofence"
	"github.com/wethinkt/go-cdrintel/internal/i18n"
	"github.com/wethinkt/go-cdrintel/internal/store"
)

var geofenceSuspect string

var geofenceCmd = &cobra.Command{
	Use:   "geofence",
	Short: "Manage geofences",
	Long: `Manage the polygons that raise alerts when a suspect's records fall
inside them.

Geofence files are YAML (or JSON) lists:

  - name: Warehouse
    suspect_name: Ravi
    geometry:
      type: Polygon
      coordinates: [[[77.50, 12.90], [77.70, 12.90], [77.70, 13.10], [77.50, 12.90]]]

Examples:
  cdrintel geofence import fences.yaml
  cdrintel geofence list --suspect Ravi
  cdrintel geofence delete <id>`,
}

var geofenceImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import geofences from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.importGeofenceFile(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, i18n.Tn("cmd.geofence.imported",
			"Imported {{.Count}} geofence", "Imported {{.Count}} geofences", n))
		return nil
	},
}

var geofenceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List geofences",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fences, err := a.store.ListGeofences(context.Background(), geofenceSuspect)
		if err != nil {
			return err
		}
		if outputJSON {
			if fences == nil {
				fences = []geofence.Geofence{}
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(fences)
		}
		if len(fences) == 0 {
			fmt.Fprintln(stdout, i18n.T("cmd.geofence.none", "No geofences defined."))
			return nil
		}

		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSUSPECT\tVERTICES\tCREATED")
		for _, g := range fences {
			vertices := 0
			if len(g.Geometry.Coordinates) > 0 {
				vertices = len(g.Geometry.Coordinates[0])
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", g.ID, g.Name, orDash(g.SuspectName),
				vertices, i18n.RelativeTimeShort(g.CreatedAt))
		}
		return w.Flush()
	},
}

var geofenceDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a geofence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.DeleteGeofence(context.Background(), args[0]); err != nil {
			if store.IsNotFound(err) {
				return fmt.Errorf("geofence %s not found", args[0])
			}
			return err
		}
		fmt.Fprintln(stdout, i18n.Tf("cmd.geofence.deleted", "Deleted geofence %s", args[0]))
		return nil
	},
}

func init() {
	geofenceListCmd.Flags().StringVarP(&geofenceSuspect, "suspect", "s", "", "only geofences of this suspect")
	geofenceCmd.AddCommand(geofenceImportCmd, geofenceListCmd, geofenceDeleteCmd)
}
