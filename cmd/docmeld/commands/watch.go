package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
	"git.home.luguber.info/inful/docmeld/internal/location"
	"git.home.luguber.info/inful/docmeld/internal/logfields"
	"git.home.luguber.info/inful/docmeld/internal/metrics"
	"git.home.luguber.info/inful/docmeld/internal/watch"
)

// WatchCmd rebuilds a target on every change below the configuration's directory.
type WatchCmd struct {
	Target      string        `arg:"" optional:"" default:"default" help:"Target to rebuild"`
	Var         []string      `name:"var" sep:"none" help:"Extra key=value parameter (repeatable)"`
	Every       time.Duration `name:"every" help:"Also rebuild periodically, e.g. 10m"`
	Quiet       time.Duration `name:"quiet" default:"300ms" help:"Wait this long after the last change before rebuilding"`
	MetricsAddr string        `name:"metrics-addr" help:"Serve Prometheus metrics on this address, e.g. :9464"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(root, g.stdout())
	if err != nil {
		return err
	}

	// Fail fast on a broken configuration or unknown target.
	outcome, err := a.build(ctx, w.Target, false, w.Var)
	if err != nil {
		return err
	}
	a.flushMetrics(root.MetricsFile)

	if location.IsURL(a.settings.ConfigFile) {
		return ferrors.ValidationError("watch needs a local configuration file").
			WithContext("config", a.settings.ConfigFile).
			Build()
	}
	cfgPath, err := filepath.Abs(a.settings.ConfigFile)
	if err != nil {
		return err
	}
	watcher, err := watch.New(watch.Config{
		Root:     filepath.Dir(cfgPath),
		Every:    w.Every,
		Debounce: watch.DebouncerConfig{QuietWindow: w.Quiet, MaxDelay: 10 * w.Quiet},
	}, func(ctx context.Context, reason string) {
		rebuilt, err := a.build(ctx, w.Target, false, w.Var)
		if err != nil {
			slog.Error("Rebuild failed", logfields.Target(w.Target), logfields.Error(err))
			return
		}
		if !rebuilt.Succeeded() {
			slog.Warn("Rebuild finished with failures", logfields.Target(w.Target), slog.String("reason", reason))
		}
		a.flushMetrics(root.MetricsFile)
	})
	if err != nil {
		return err
	}
	for _, r := range outcome.All() {
		watcher.Ignore(r.OutputFile())
	}

	if w.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              w.MetricsAddr,
			Handler:           metrics.HTTPHandler(a.recorder.Registry()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", logfields.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
		slog.Info("Serving metrics", logfields.URL(w.MetricsAddr))
	}

	return watcher.Run(ctx)
}
