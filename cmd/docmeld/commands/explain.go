package commands

import (
	"context"
	"io"
	"time"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
	"git.home.luguber.info/inful/docmeld/internal/target"
)

// ExplainCmd implements the 'explain' command.
type ExplainCmd struct {
	Target string   `arg:"" optional:"" default:"default" help:"Target to explain"`
	Var    []string `name:"var" sep:"none" help:"Extra key=value parameter (repeatable)"`
}

func (e *ExplainCmd) Run(g *Global, root *CLI) error {
	a, err := newApp(root, g.stdout())
	if err != nil {
		return err
	}
	doc, err := a.explain(context.Background(), e.Target, e.Var, time.Now)
	if err != nil {
		return err
	}
	out := g.stdout()
	_, err = io.WriteString(out, doc)
	return err
}

// explain resolves name without melding or running anything and dumps the
// parameters as YAML.
func (a *app) explain(ctx context.Context, name string, pairs []string, now func() time.Time) (string, error) {
	vars, err := target.ParseVars(pairs)
	if err != nil {
		return "", err
	}
	tree, err := a.load(ctx)
	if err != nil {
		return "", err
	}
	resolved, err := target.NewResolver(target.WithClock(now)).Resolve(tree, name, vars)
	if err != nil {
		return "", err
	}
	return cfgtree.Dump(cfgtree.Mapping(resolved.Params))
}
