package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/classdesk/cmd/cli/internal/commands"
	"github.com/wolfeidau/classdesk/internal/logger"
	"github.com/wolfeidau/classdesk/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Login    commands.LoginCmd    `cmd:"" help:"Log in to the portal"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Log out and forget the session"`
		Status   commands.StatusCmd   `cmd:"" help:"Check the saved session"`
		Whoami   commands.WhoamiCmd   `cmd:"" help:"Show the profile of the logged in user"`
		Open     commands.OpenCmd     `cmd:"" help:"Open a portal page, applying access rules"`
		Get      commands.GetCmd      `cmd:"" help:"Fetch a backend resource as JSON"`
		Register commands.RegisterCmd `cmd:"" help:"Create an account"`
		Password commands.PasswordCmd `cmd:"" help:"Change your password"`
		Validate commands.ValidateCmd `cmd:"" help:"Check form input without contacting the backend"`
		Health   commands.HealthCmd   `cmd:"" help:"Check the backend is reachable"`
		Config   commands.ConfigCmd   `cmd:"" help:"Show or change saved settings"`

		Debug    bool   `help:"Enable debug mode." env:"CLASSDESK_DEBUG"`
		StateDir string `help:"Directory holding the session, cookies and cache (default: ~/.classdesk)." env:"CLASSDESK_STATE_DIR" type:"path"`
		Origin   string `help:"Address the portal is served from." env:"CLASSDESK_ORIGIN"`
		DevPort  int    `help:"Backend port used when the origin is a loopback address." env:"CLASSDESK_DEV_PORT"`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("classdesk"),
		kong.Description("Command line client for the teaching portal."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	logger.Setup(cli.Debug)

	shutdown, err := telemetry.InitTelemetry(ctx, "classdesk", version)
	cmd.FatalIfErrorf(err)

	err = cmd.Run(&commands.Globals{
		Debug:    cli.Debug,
		Version:  version,
		StateDir: cli.StateDir,
		Origin:   cli.Origin,
		DevPort:  cli.DevPort,
	})

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if serr := shutdown(flushCtx); serr != nil {
		log.Warn().Err(serr).Msg("failed to flush telemetry")
	}

	cmd.FatalIfErrorf(err)
}
