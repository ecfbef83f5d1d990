package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/preactpack/cmd/preactpack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Serve   commands.ServeCmd  `cmd:"" help:"Build in development mode, watch and serve"`
		Build   commands.BuildCmd  `cmd:"" help:"Build for production"`
		Plan    commands.PlanCmd   `cmd:"" help:"Print the resolved build plan"`
		Stages  commands.StagesCmd `cmd:"" help:"List the stage catalog"`
		Config  string             `help:"Path to the settings file" default:"preact.config.yaml" env:"PREACTPACK_CONFIG" type:"path"`
		Debug   bool               `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("preactpack"),
		kong.Description("Compose and run Preact build configurations"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Config: cli.Config, Stdout: os.Stdout})
	cmd.FatalIfErrorf(err)
}
