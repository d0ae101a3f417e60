package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docmeld/internal/build"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
	"git.home.luguber.info/inful/docmeld/internal/logfields"
	"git.home.luguber.info/inful/docmeld/internal/target"
)

// DefaultTarget is built when no target name is given.
const DefaultTarget = "default"

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Target string   `arg:"" optional:"" default:"default" help:"Target to build"`
	Print  bool     `short:"p" help:"Print rendered output instead of running the command"`
	Var    []string `name:"var" sep:"none" help:"Extra key=value parameter (repeatable)"`
	NoOpen bool     `name:"no-open" help:"Do not open the produced file"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(root, g.stdout())
	if err != nil {
		return err
	}
	defer a.flushMetrics(root.MetricsFile)

	outcome, err := a.build(ctx, b.Target, b.Print, b.Var)
	if err != nil {
		return err
	}
	return report(g.stdout(), outcome, b.Print, !b.NoOpen)
}

// build loads the configuration and builds name.
func (a *app) build(ctx context.Context, name string, printOnly bool, pairs []string) (*build.Outcome, error) {
	vars, err := target.ParseVars(pairs)
	if err != nil {
		return nil, err
	}
	tree, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = DefaultTarget
	}
	return a.service.Build(ctx, build.Request{
		Tree:    tree,
		Target:  name,
		Options: build.Options{PrintOnly: printOnly, Vars: vars},
	})
}

// report prints rendered output in print mode, opens produced files and turns
// non-zero exit codes into a command error.
func report(w io.Writer, outcome *build.Outcome, printOnly, open bool) error {
	results := outcome.Results()
	for _, r := range results {
		if printOnly {
			printResult(w, r)
			continue
		}
		if open && r.Openable() {
			if err := openFile(r.OutputPath()); err != nil {
				slog.Warn("Failed to open output file", logfields.Path(r.OutputPath()), logfields.Error(err))
			}
		}
	}
	if outcome.Succeeded() {
		return nil
	}
	for _, r := range results {
		if r.Succeeded() {
			continue
		}
		return ferrors.NewError(ferrors.CategoryCommand,
			fmt.Sprintf("target %s: command exited with code %d", r.Target, r.ReturnCode)).
			WithContext("target", r.Target).
			WithContext("command", r.Command).
			Build()
	}
	return ferrors.NewError(ferrors.CategoryCommand,
		fmt.Sprintf("target %s: a hook target failed", outcome.Target)).
		WithContext("target", outcome.Target).
		Build()
}

func printResult(w io.Writer, r *build.Result) {
	if r.Rendered {
		_, _ = io.WriteString(w, r.Output)
		if r.Output != "" && r.Output[len(r.Output)-1] != '\n' {
			_, _ = io.WriteString(w, "\n")
		}
	}
	if r.Command != "" {
		_, _ = fmt.Fprintf(w, "# command: %s\n", r.Command)
	}
}
