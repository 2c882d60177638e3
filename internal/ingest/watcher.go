package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wethinkt/go-cdrintel/internal/applog"
)

// DefaultDebounce is how long a file must stay unchanged before it is
// handed to the pipeline.
const DefaultDebounce = 2 * time.Second

// DropEvent is a settled input file found in a watched drop directory.
type DropEvent struct {
	Path        string
	SuspectName string
}

// DropWatcher watches a directory tree for new CDR files. Files in a
// subdirectory are attributed to a suspect named after that subdirectory.
type DropWatcher struct {
	root     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}
	mu       sync.Mutex
	timers   map[string]*time.Timer
}

// NewDropWatcher creates a watcher for root.
func NewDropWatcher(root string, debounce time.Duration) (*DropWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &DropWatcher{
		root:     root,
		debounce: debounce,
		watcher:  fw,
		done:     make(chan struct{}),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Start begins watching and returns a channel of settled files. The channel
// is closed when ctx is canceled or Stop is called.
func (w *DropWatcher) Start(ctx context.Context) (<-chan DropEvent, error) {
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return nil, err
	}
	w.addRecursive(w.root)

	events := make(chan DropEvent, 16)
	go w.loop(ctx, events)
	return events, nil
}

// Stop stops the watcher and releases resources.
func (w *DropWatcher) Stop() error {
	close(w.done)
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *DropWatcher) addRecursive(root string) {
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			applog.Log.Warn("Failed to watch directory", "dir", path, "error", err)
		}
		return nil
	})
	applog.Log.Info("Watching drop directory", "root", root)
}

func (w *DropWatcher) loop(ctx context.Context, events chan<- DropEvent) {
	defer close(events)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addRecursive(event.Name)
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !Supported(event.Name) {
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			w.schedule(ctx, event.Name, events)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			applog.Log.Error("Watcher error", "error", err)

		case <-w.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// schedule (re)arms the debounce timer for path. Each write resets it so a
// file is emitted once it has stopped growing.
func (w *DropWatcher) schedule(ctx context.Context, path string, events chan<- DropEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		ev := DropEvent{Path: path, SuspectName: w.suspectFor(path)}
		select {
		case events <- ev:
			applog.Log.Debug("Drop file settled", "path", path, "suspect", ev.SuspectName)
		case <-ctx.Done():
		case <-w.done:
		}
	})
}

// suspectFor returns the name of the first directory below the root that
// contains path, or "" for files placed directly in the root.
func (w *DropWatcher) suspectFor(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

// Watch runs the pipeline for every settled file until ctx is canceled.
// Failures are logged and do not stop the watch.
func (p *Pipeline) Watch(ctx context.Context, w *DropWatcher, onResult func(DropEvent, *Result, error)) error {
	events, err := w.Start(ctx)
	if err != nil {
		return err
	}
	defer w.Stop()

	for ev := range events {
		res, err := p.IngestFile(ctx, ev.Path, Options{SuspectName: ev.SuspectName})
		if err != nil {
			applog.Log.Error("Drop file ingestion failed", "path", ev.Path, "error", err)
		}
		if onResult != nil {
			onResult(ev, res, err)
		}
	}
	return ctx.Err()
}
