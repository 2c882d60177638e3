package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-cdrintel/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.GetInfo("cdrintel")
		if outputJSON {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		fmt.Fprintln(stdout, version.String("cdrintel"))
		if info.Revision != "" {
			fmt.Fprintf(stdout, "revision %s\n", info.Revision)
		}
		fmt.Fprintf(stdout, "%s %s/%s\n", info.GoVersion, info.OS, info.Arch)
		return nil
	},
}
