package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupported(t *testing.T) {
	for name, want := range map[string]bool{
		"cdr.csv":     true,
		"cdr.CSV.gz":  true,
		"cdr.xlsx":    true,
		"export.json": true,
		"notes.pdf":   false,
		"archive.gz":  false,
		"README":      false,
	} {
		assert.Equal(t, want, Supported(name), name)
	}
}

func TestDropWatcher_SuspectFromDirectory(t *testing.T) {
	root := t.TempDir()
	w, err := NewDropWatcher(root, 0)
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, "Ravi", w.suspectFor(filepath.Join(root, "Ravi", "cdr.csv")))
	assert.Equal(t, "Ravi", w.suspectFor(filepath.Join(root, "Ravi", "march", "cdr.csv")))
	assert.Equal(t, "", w.suspectFor(filepath.Join(root, "cdr.csv")))
}

func TestDropWatcher_EmitsSettledFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Ravi"), 0755))

	w, err := NewDropWatcher(root, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	events, err := w.Start(ctx)
	require.NoError(t, err)
	defer w.Stop()

	path := filepath.Join(root, "Ravi", "cdr.csv")
	require.NoError(t, os.WriteFile(filepath.Join(root, "Ravi", "ignored.pdf"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(path, []byte(preambleCSV), 0644))

	select {
	case ev := <-events:
		assert.Equal(t, path, ev.Path)
		assert.Equal(t, "Ravi", ev.SuspectName)

		sink := &memorySink{}
		res, err := NewPipeline(sink, PipelineConfig{}).IngestFile(ctx, ev.Path, Options{SuspectName: ev.SuspectName})
		require.NoError(t, err)
		assert.Equal(t, 1, res.RecordsInserted)
		assert.Equal(t, "Ravi", sink.records[0].SuspectName)
	case <-ctx.Done():
		t.Fatal("no drop event before timeout")
	}
}
