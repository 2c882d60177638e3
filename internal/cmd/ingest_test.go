//go:build cgo

package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
	"github.com/wethinkt/go-cdrintel/internal/ingest"
)

const cliCSV = `calling_number,called_number,call_start_time,duration_seconds,imei,cell_id,latitude,longitude
9876543210,9123456780,2024-01-15 10:00:00,60,356938035643809,C1,12.97,77.59
9876543210,9000000001,2024-01-15 11:30:00,45,356938035643809,C2,13.50,78.10
9123456780,9876543210,2024-01-16 09:15:00,20,356938035643809,C1,12.97,77.59
`

// execute runs the root command with args in an isolated home directory
// and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	saved := stdout
	stdout = &buf
	defer func() { stdout = saved }()

	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), "cdrintel %v", args)
	return buf.Bytes()
}

func TestIngestThenQuery(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CDRINTEL_HOME", home)
	t.Setenv("CDRINTEL_LANG", "en")

	src := filepath.Join(t.TempDir(), "ravi.csv")
	require.NoError(t, os.WriteFile(src, []byte(cliCSV), 0644))

	var results []ingest.Result
	require.NoError(t, json.Unmarshal(execute(t, "ingest", "--json", "--suspect", "Ravi", src), &results))
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].RecordsInserted)

	var sessions []cdr.Session
	require.NoError(t, json.Unmarshal(execute(t, "sessions", "--json", "--suspect", "Ravi"), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, results[0].SessionID, sessions[0].ID)
	assert.NotEmpty(t, sessions[0].Workstation)

	out := execute(t, "analyze", "summary", "--json=false", "--suspect", "Ravi")
	assert.Contains(t, string(out), "3 (")

	csvPath := filepath.Join(t.TempDir(), "out.csv")
	execute(t, "export", "--suspect", "Ravi", "--format", "csv", "-o", csvPath)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 4, bytes.Count(data, []byte("\n")))
}
