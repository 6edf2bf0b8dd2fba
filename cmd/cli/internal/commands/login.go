package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/classdesk/internal/notify"
	"github.com/wolfeidau/classdesk/internal/roles"
	"github.com/wolfeidau/classdesk/internal/router"
)

// LoginCmd logs in and opens the landing page.
type LoginCmd struct {
	Identifier    string `arg:"" help:"Email, username or user code"`
	Password      string `help:"Password, prompted for when omitted" env:"CLASSDESK_PASSWORD"`
	PasswordStdin bool   `help:"Read the password from stdin"`
	Redirect      string `help:"Page to open after logging in"`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}

	password := c.Password
	if c.PasswordStdin {
		if password, err = readLine(globals); err != nil {
			return err
		}
	} else if password == "" {
		if password, err = readSecret(globals, "Password: "); err != nil {
			return err
		}
	}

	dest, err := app.Auth.LoginFlow(ctx, c.Identifier, password, c.Redirect)
	if err != nil {
		return err
	}

	res, err := app.Navigator.Push(dest)
	if err != nil {
		// the login itself succeeded, fall back to the role home
		log.Warn().Err(err).Str("to", dest).Msg("failed to open redirect target")
		if res, err = app.Navigator.Push(roles.DefaultHomeForRole(app.Session.Role())); err != nil {
			return fmt.Errorf("failed to open landing page: %w", err)
		}
	}

	out := globals.out()
	notify.NewWriter(out).Notify(notify.LevelSuccess, "Login successful")
	fmt.Fprintf(out, "Logged in as %s (%s)\n", app.Session.DisplayName(), roles.DisplayName(app.Session.Role()))
	printPage(out, res)

	return nil
}

// LogoutCmd ends the session locally and on the backend.
type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}

	app.Auth.Logout(ctx)

	if err := app.Clients.Jar.Clear(); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}

	if _, err := app.Navigator.Replace(router.LoginPath); err != nil {
		log.Debug().Err(err).Msg("failed to open login page")
	}

	notify.NewWriter(globals.out()).Notify(notify.LevelSuccess, "Logged out")
	return nil
}
