package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/cli/browser"
	"github.com/spf13/afero"

	"git.home.luguber.info/inful/docmeld/internal/build"
	"git.home.luguber.info/inful/docmeld/internal/command"
	"git.home.luguber.info/inful/docmeld/internal/config"
	"git.home.luguber.info/inful/docmeld/internal/fetch"
	"git.home.luguber.info/inful/docmeld/internal/logfields"
	"git.home.luguber.info/inful/docmeld/internal/meld"
	"git.home.luguber.info/inful/docmeld/internal/metrics"
	"git.home.luguber.info/inful/docmeld/internal/render"
)

// Global is bound into every command's Run method.
type Global struct {
	Out io.Writer
}

func (g *Global) stdout() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config      string           `short:"c" help:"Configuration file path (defaults to ./_docmeld.yaml)" env:"DOCMELD_CONFIG"`
	Verbose     bool             `short:"v" help:"Enable verbose logging"`
	LogFormat   string           `name:"log-format" help:"Log format (text|json)" enum:"text,json" default:"text" env:"DOCMELD_LOG_FORMAT"`
	MetricsFile string           `name:"metrics-file" help:"Write Prometheus metrics to this file after the command" type:"path"`
	Version     kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" default:"withargs" help:"Build a target"`
	List     ListCmd     `cmd:"" help:"List buildable targets grouped by defining file"`
	Explain  ExplainCmd  `cmd:"" help:"Print a target's resolved parameters as YAML"`
	Complete CompleteCmd `cmd:"" hidden:"" help:"Print target names for shell completion"`
	Watch    WatchCmd    `cmd:"" help:"Rebuild a target whenever its inputs change"`
	Info     VersionCmd  `cmd:"" name:"version" help:"Show version information"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(newLogger(os.Stderr, c.Verbose, c.LogFormat))
	return nil
}

func newLogger(w io.Writer, verbose bool, format string) *slog.Logger {
	level := parseLogLevel(verbose)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseLogLevel honours --verbose first, then DOCMELD_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(os.Getenv(config.EnvLogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openFile shows a produced file to the user.
var openFile = browser.OpenFile

// app holds the collaborators of one invocation.
type app struct {
	settings config.Settings
	loader   *config.Loader
	service  *build.Service
	recorder *metrics.PrometheusRecorder
	runner   command.Runner
	out      io.Writer
}

// newApp loads settings (including .env files next to the configuration)
// and wires the build pipeline.
func newApp(root *CLI, out io.Writer) (*app, error) {
	path := root.Config
	if path == "" {
		path = config.DefaultConfigFile
	}
	if err := config.LoadEnvFiles(afero.NewOsFs(), filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	settings, err := config.SettingsFromEnv()
	if err != nil {
		return nil, err
	}
	if root.Config != "" {
		settings.ConfigFile = root.Config
	}

	fetcher := fetch.New(fetch.Options{Timeout: settings.HTTPTimeout, RetryMax: 2})
	runner := command.NewExecRunner(settings.Shell)
	runner.Stdout = out
	recorder := metrics.NewPrometheusRecorder(nil)

	svc := build.NewService().
		WithMelder(meld.New(meld.WithFetcher(fetcher))).
		WithRenderer(render.New(render.WithFetcher(fetcher), render.WithTemplateRoot(settings.TemplateRoot))).
		WithRunner(runner).
		WithRecorder(recorder)

	return &app{
		settings: settings,
		loader:   config.NewLoader(config.WithFetcher(fetcher)),
		service:  svc,
		recorder: recorder,
		runner:   runner,
		out:      out,
	}, nil
}

func (a *app) load(ctx context.Context) (*config.Tree, error) {
	return a.loader.Load(ctx, a.settings.ConfigFile)
}

// flushMetrics writes the textfile export when --metrics-file was given.
func (a *app) flushMetrics(path string) {
	if path == "" {
		return
	}
	if err := a.recorder.WriteTextfile(path); err != nil {
		slog.Warn("Failed to write metrics file", logfields.Path(path), logfields.Error(err))
	}
}
