package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docmeld/cmd/docmeld/commands"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
	"git.home.luguber.info/inful/docmeld/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("docmeld"),
		kong.Description("Meld markdown and YAML into documents through templates and external renderers."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
		kong.Bind(&commands.Global{Out: os.Stdout}),
	)

	if err := parser.Run(cli); err != nil {
		adapter := ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
		adapter.HandleError(err)
	}
}
