package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wethinkt/go-cdrintel/internal/lookup"
)

var deviceCmd = &cobra.Command{
	Use:   "device <imei>",
	Short: "Decode an IMEI",
	Long: `Decode an IMEI into its type allocation code, serial and check digit,
validate it with the Luhn algorithm and look up the device make and model.

Examples:
  cdrintel device 356938035643809
  cdrintel device 356938035643809 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runDevice,
}

func runDevice(cmd *cobra.Command, args []string) error {
	lcfg, err := lookupConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*lcfg.Timeout+time.Second)
	defer cancel()

	dev, err := lookup.NewDeviceDecoder(lcfg).Decode(ctx, args[0])
	if err != nil {
		return err
	}

	if outputJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dev)
	}

	luhn := color.GreenString("valid")
	if !dev.LuhnValid {
		luhn = color.RedString("invalid")
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "IMEI\t%s\n", dev.IMEI)
	fmt.Fprintf(w, "TAC\t%s\n", dev.TAC)
	fmt.Fprintf(w, "Serial\t%s\n", dev.Serial)
	fmt.Fprintf(w, "Check digit\t%s (%s)\n", dev.CheckDigit, luhn)
	fmt.Fprintf(w, "Brand\t%s\n", dev.Brand)
	fmt.Fprintf(w, "Manufacturer\t%s\n", dev.Manufacturer)
	fmt.Fprintf(w, "Model\t%s\n", dev.Model)
	fmt.Fprintf(w, "Source\t%s\n", dev.Source)
	return w.Flush()
}
