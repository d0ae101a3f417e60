// Package watch rebuilds a target whenever files under a directory change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docmeld/internal/logfields"
)

// Default debounce settings.
const (
	DefaultQuietWindow = 300 * time.Millisecond
	DefaultMaxDelay    = 3 * time.Second
)

// Config configures a Watcher.
type Config struct {
	// Root is watched recursively. Hidden directories are skipped.
	Root string
	// Every schedules a periodic rebuild in addition to change events; 0 disables it.
	Every time.Duration
	// Debounce tunes event coalescing; zero values select the defaults.
	Debounce DebouncerConfig
}

// Trigger runs one rebuild.
type Trigger func(ctx context.Context, reason string)

// Watcher turns filesystem events into debounced rebuilds.
type Watcher struct {
	cfg       Config
	trigger   Trigger
	debouncer *Debouncer
	watcher   *fsnotify.Watcher
	scheduler gocron.Scheduler

	mu     sync.RWMutex
	ignore map[string]bool
}

// New creates a Watcher. Call Run to start it.
func New(cfg Config, trigger Trigger) (*Watcher, error) {
	if trigger == nil {
		return nil, errors.New("watch: trigger is required")
	}
	if cfg.Debounce.QuietWindow <= 0 {
		cfg.Debounce.QuietWindow = DefaultQuietWindow
	}
	if cfg.Debounce.MaxDelay <= 0 {
		cfg.Debounce.MaxDelay = DefaultMaxDelay
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}
	cfg.Root = root

	debouncer, err := NewDebouncer(cfg.Debounce)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		cfg:       cfg,
		trigger:   trigger,
		debouncer: debouncer,
		watcher:   w,
		ignore:    map[string]bool{},
	}, nil
}

// Ignore skips events for files with the given base names, such as the
// build's own output file.
func (w *Watcher) Ignore(names ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, n := range names {
		if n != "" {
			w.ignore[filepath.Base(n)] = true
		}
	}
}

func (w *Watcher) ignored(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ignore[filepath.Base(path)]
}

// Run watches until ctx is done. Rebuilds run one at a time on the calling
// goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
	}()

	if err := w.addTree(w.cfg.Root); err != nil {
		return err
	}
	slog.Info("Watching for changes", logfields.Path(w.cfg.Root))

	if w.cfg.Every > 0 {
		if err := w.startScheduler(); err != nil {
			return err
		}
		defer func() {
			if err := w.scheduler.Shutdown(); err != nil {
				slog.Error("Error stopping scheduler", logfields.Error(err))
			}
		}()
	}

	go w.eventLoop(ctx)

	return w.debouncer.Run(ctx, func(ctx context.Context, b Batch) {
		slog.Info("Rebuilding",
			slog.String("reason", b.LastReason),
			slog.Int("events", b.Count),
			slog.String("cause", b.Cause))
		w.trigger(ctx, b.LastReason)
	})
}

func (w *Watcher) startScheduler() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.cfg.Every),
		gocron.NewTask(w.debouncer.Request, "schedule"),
		gocron.WithName("periodic-rebuild"),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to create periodic rebuild job: %w", err)
	}
	w.scheduler = s
	s.Start()
	return nil
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if hidden(event.Name) || w.ignored(event.Name) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	if event.Has(fsnotify.Create) {
		if err := w.addTree(event.Name); err != nil {
			slog.Debug("Not watching new path", logfields.Path(event.Name), logfields.Error(err))
		}
	}
	slog.Debug("File change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
	w.debouncer.Request(event.Name)
}

// addTree watches dir and every non-hidden directory below it. Paths that
// are not directories are ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && hidden(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func hidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
