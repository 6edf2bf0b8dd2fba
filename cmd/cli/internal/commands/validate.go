package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/classdesk/internal/validation"
)

// ValidateCmd checks form input offline, using the same rules as the portal forms.
type ValidateCmd struct {
	Email    ValidateEmailCmd    `cmd:"" help:"Check an email address"`
	Phone    ValidatePhoneCmd    `cmd:"" help:"Check a mobile number"`
	Password ValidatePasswordCmd `cmd:"" help:"Grade a password"`
	Avatar   ValidateAvatarCmd   `cmd:"" help:"Check an avatar image before upload"`
}

type ValidateEmailCmd struct {
	Value string `arg:""`
}

func (c *ValidateEmailCmd) Run(globals *Globals) error {
	return report(globals, validation.ValidateEmail(c.Value))
}

type ValidatePhoneCmd struct {
	Value string `arg:"" optional:""`
}

func (c *ValidatePhoneCmd) Run(globals *Globals) error {
	return report(globals, validation.ValidatePhone(c.Value))
}

type ValidatePasswordCmd struct {
	Confirm bool `help:"Also read a confirmation and check that it matches"`
}

func (c *ValidatePasswordCmd) Run(ctx context.Context, globals *Globals) error {
	password, err := readSecret(globals, "Password: ")
	if err != nil {
		return err
	}

	strength := validation.PasswordStrength(password)
	fmt.Fprintf(globals.out(), "Strength: %s (%d%%, %s)\n", strength.Label, strength.Percent, strength.Status)

	if !validation.IsValidPasswordLength(password, validation.MinPasswordLength) {
		return report(globals, validation.Result{Error: fmt.Sprintf("Password must be at least %d characters", validation.MinPasswordLength)})
	}

	if c.Confirm {
		confirm, err := readSecret(globals, "Confirm password: ")
		if err != nil {
			return err
		}
		return report(globals, validation.ValidatePasswordMatch(password, confirm))
	}

	return report(globals, validation.Result{Valid: true})
}

type ValidateAvatarCmd struct {
	Path    string `arg:"" type:"existingfile" help:"Image file"`
	MaxSize int64  `help:"Largest accepted size in bytes" default:"2097152"`
}

func (c *ValidateAvatarCmd) Run(globals *Globals) error {
	file, err := validation.AvatarFromPath(c.Path)
	if err != nil {
		return err
	}

	fmt.Fprintf(globals.out(), "%s: %s, %s\n", file.Name, file.ContentType, validation.FormatFileSize(file.Size))
	return report(globals, validation.ValidateAvatar(&file, c.MaxSize))
}

func report(globals *Globals, res validation.Result) error {
	if !res.Valid {
		return fmt.Errorf("%w: %s", validation.ErrInvalid, res.Error)
	}
	fmt.Fprintln(globals.out(), "OK")
	return nil
}
