package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/xcodebuilder/cmd/xcodebuilder/commands"
	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("xcodebuilder"),
		kong.Description("Build, sign and package Xcode projects."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Logger: slog.Default(), Out: os.Stdout}
	if err := parser.Run(global, &cli); err != nil {
		errs.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
