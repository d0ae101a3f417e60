package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"github.com/xlab/treeprint"

	"git.home.luguber.info/inful/docmeld/internal/config"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
	"git.home.luguber.info/inful/docmeld/internal/target"
)

const descriptionWidth = 72

// ListCmd implements the 'list' command.
type ListCmd struct{}

func (l *ListCmd) Run(g *Global, root *CLI) error {
	a, err := newApp(root, g.stdout())
	if err != nil {
		return err
	}
	tree, err := a.load(context.Background())
	if err != nil {
		return err
	}
	if !tree.HasTargets() {
		return ferrors.WrapError(target.ErrNoTargetsDefined, ferrors.CategoryConfig,
			"no targets defined").
			WithContext("config", tree.Path).
			Build()
	}
	out := g.stdout()
	_, err = io.WriteString(out, targetTree(tree).String())
	return err
}

// targetTree groups buildable targets under the file that defines them, in
// first-seen order, relative to the root configuration's directory.
func targetTree(tree *config.Tree) treeprint.Tree {
	base := filepath.Dir(tree.Path)
	t := treeprint.NewWithRoot(filepath.Base(tree.Path))

	branches := map[string]treeprint.Tree{}
	for _, name := range tree.Buildable() {
		spec, _ := tree.Target(name)
		def := spec.GetString(config.KeyDefPath)
		label := def
		if rel, err := filepath.Rel(base, def); err == nil && def != "" {
			label = rel
		}
		if label == "" {
			label = "(generated)"
		}
		branch, ok := branches[label]
		if !ok {
			branch = t.AddBranch(label)
			branches[label] = branch
		}
		desc := strings.TrimSpace(spec.GetString("description"))
		if desc == "" {
			branch.AddNode(name)
			continue
		}
		node := branch.AddBranch(name)
		for _, line := range strings.Split(wordwrap.WrapString(desc, descriptionWidth), "\n") {
			node.AddNode(line)
		}
	}
	return t
}

// CompleteCmd prints buildable target names separated by spaces.
type CompleteCmd struct{}

func (c *CompleteCmd) Run(g *Global, root *CLI) error {
	a, err := newApp(root, g.stdout())
	if err != nil {
		return err
	}
	tree, err := a.load(context.Background())
	if err != nil {
		return err
	}
	out := g.stdout()
	if !tree.HasTargets() {
		return nil
	}
	_, err = fmt.Fprintln(out, strings.Join(tree.Buildable(), " "))
	return err
}
