package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wethinkt/go-cdrintel/internal/applog"
	"github.com/wethinkt/go-cdrintel/internal/config"
	"github.com/wethinkt/go-cdrintel/internal/i18n"
	"github.com/wethinkt/go-cdrintel/internal/ingest"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest CDR files dropped into a directory",
	Long: `Watch a drop directory and ingest every CDR file placed in it once the
file stops changing. Files inside a subdirectory are attributed to a suspect
named after that subdirectory (drop/Ravi/jio.csv → suspect "Ravi").

Only one watcher may own a directory at a time.

Examples:
  cdrintel watch                  # watch the configured drop directory
  cdrintel watch ./incoming --debounce 5s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "quiet period before a file is ingested (default from config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir, err := cfg.DropDir()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		dir = args[0]
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	debounce := watchDebounce
	if debounce <= 0 {
		debounce = cfg.Ingest.DebounceDuration()
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintln(os.Stderr, i18n.Tf("cmd.watch.started", "Watching %s for CDR files (Ctrl+C to stop)", dir))
	return watchDropDir(ctx, a.pipeline, dir, debounce, printWatchResult)
}

// watchDropDir claims dir in the instance registry and runs the pipeline on
// every settled file until ctx is canceled.
func watchDropDir(ctx context.Context, p *ingest.Pipeline, dir string, debounce time.Duration,
	onResult func(ingest.DropEvent, *ingest.Result, error)) error {
	if existing := config.FindWatcherByDir(dir); existing != nil {
		return fmt.Errorf("%s is already watched by PID %d (started %s)",
			dir, existing.PID, existing.StartedAt.Format(time.RFC3339))
	}

	w, err := ingest.NewDropWatcher(dir, debounce)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	inst := config.Instance{
		Type:      config.InstanceWatch,
		PID:       os.Getpid(),
		Dir:       dir,
		StartedAt: time.Now(),
	}
	if err := config.RegisterInstance(inst); err != nil {
		applog.Log.Warn("Failed to register watch instance", "error", err)
	}
	defer config.UnregisterInstance(os.Getpid())

	if err := p.Watch(ctx, w, onResult); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func printWatchResult(ev ingest.DropEvent, res *ingest.Result, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", color.RedString("✗"), ev.Path, err)
		return
	}
	printIngestResult(ev.Path, res)
}
