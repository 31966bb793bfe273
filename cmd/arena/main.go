package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version     kong.VersionFlag `short:"v" help:"Show version"`
	Config      string           `short:"c" default:"arena.hcl" help:"Path to the HCL config file"`
	Server      ServerCmd        `cmd:"" help:"Run the arena server"`
	Heroes      HeroesCmd        `cmd:"" help:"Print the hero catalog"`
	Migrate     MigrateCmd       `cmd:"" help:"Run database migrations"`
	Healthcheck HealthcheckCmd   `cmd:"" help:"Check that a running server is healthy"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("arena"),
		kong.Description("Turn-based 5v5 hero combat server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
