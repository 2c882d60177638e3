// cdrintel ingests call detail records and runs forensic analytics over
// them.
//
// Usage:
//
//	cdrintel ingest --suspect Ravi airtel_march.xlsx
//	cdrintel analyze overview --suspect Ravi
//	cdrintel serve --port 8790 --token mytoken --watch
package main

import (
	"os"

	"github.com/wethinkt/go-cdrintel/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
