package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfeidau/classdesk/internal/client"
	"github.com/wolfeidau/classdesk/internal/config"
	"github.com/wolfeidau/classdesk/internal/session"
	"gopkg.in/yaml.v3"
)

// ConfigCmd shows or changes the saved configuration.
type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" default:"1" help:"Print the effective configuration"`
	Set  ConfigSetCmd  `cmd:"" help:"Save configuration values"`
}

type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := loadConfig(globals)
	if err != nil {
		return err
	}

	baseURL, err := client.ResolveBaseURL(cfg.Origin, cfg.DevPort)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	out := globals.out()
	fmt.Fprintf(out, "# %s\n", config.Path(cfg.StateDir))
	fmt.Fprintf(out, "# api base url: %s\n", baseURL)
	_, err = out.Write(data)
	return err
}

type ConfigSetCmd struct {
	Origin  string        `help:"Address the portal is served from"`
	DevPort int           `help:"Backend port used for loopback origins"`
	Timeout time.Duration `help:"HTTP request timeout"`
	Retries uint          `help:"Attempts for idempotent requests, 1 disables retries"`
}

func (c *ConfigSetCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := loadConfig(globals)
	if err != nil {
		return err
	}

	if c.Origin != "" {
		cfg.Origin = c.Origin
	}
	if c.DevPort != 0 {
		cfg.DevPort = c.DevPort
	}
	if c.Timeout != 0 {
		cfg.Timeout = c.Timeout
	}
	if c.Retries != 0 {
		cfg.Retry.MaxAttempts = c.Retries
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	fmt.Fprintf(globals.out(), "Saved %s\n", config.Path(cfg.StateDir))
	return nil
}

func loadConfig(globals *Globals) (*config.Config, error) {
	stateDir := globals.StateDir
	if stateDir == "" {
		dir, err := session.DefaultStateDir()
		if err != nil {
			return nil, err
		}
		stateDir = dir
	}
	return config.Load(stateDir)
}
