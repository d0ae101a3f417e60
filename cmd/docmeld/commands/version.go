package commands

import (
	"fmt"

	"git.home.luguber.info/inful/docmeld/internal/version"
)

// VersionCmd prints build information.
type VersionCmd struct{}

func (v *VersionCmd) Run(g *Global, _ *CLI) error {
	out := g.stdout()
	_, err := fmt.Fprintf(out, "docmeld %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	return err
}
