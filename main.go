package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/Rodvdev/gainz-factory-sub003/backend"
	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/Rodvdev/gainz-factory-sub003/frontend"
)

type ServeCmd struct{}

func (ServeCmd) Run(ctx context.Context) error {
	return backend.RunBackend(ctx)
}

type MigrateCmd struct{}

func (MigrateCmd) Run(ctx context.Context) error {
	return backend.Migrate(ctx)
}

type SeedCmd struct{}

func (SeedCmd) Run(ctx context.Context) error {
	return backend.Seed(ctx)
}

type ExportCmd struct {
	User string `required:"" help:"Id of the user to export."`
}

func (c ExportCmd) Run(ctx context.Context) error {
	return backend.Export(ctx, c.User, os.Stdout)
}

type ShellCmd struct {
	Server string `help:"Backend URL; defaults to SERVER_URL." env:"SERVER_URL"`
}

func (c ShellCmd) Run() error {
	frontend.RunFrontend(c.Server)
	return nil
}

var CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Run the HTTP server." default:"1"`
	Migrate MigrateCmd `cmd:"" help:"Create missing tables and indexes."`
	Seed    SeedCmd    `cmd:"" help:"Insert the level table and achievement catalogue."`
	Export  ExportCmd  `cmd:"" help:"Print everything stored about a user as JSON."`
	Shell   ShellCmd   `cmd:"" help:"Start the interactive client shell."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	k := kong.Parse(&CLI,
		kong.Name("gainz"),
		kong.Description("Gainz Factory coaching platform"),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err := k.Run(); err != nil {
		stop()
		logger.Fatal("command failed", "command", k.Command(), "err", err)
	}
}
