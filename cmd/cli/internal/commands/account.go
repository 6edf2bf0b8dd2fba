package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/classdesk/internal/models"
	"github.com/wolfeidau/classdesk/internal/validation"
)

// RegisterCmd creates a new portal account.
type RegisterCmd struct {
	Username string `arg:"" help:"Login name"`
	UserCode string `help:"Staff or student number" required:""`
	Email    string `help:"Email address" required:""`
	RealName string `help:"Full name" required:""`
	Role     string `help:"Account role" enum:"student,teacher,admin" default:"student"`
	Phone    string `help:"Mobile number"`
	ClassID  int64  `help:"Class the student belongs to"`
	Password string `help:"Password, prompted for when omitted" env:"CLASSDESK_PASSWORD"`
}

func (c *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}

	password := c.Password
	if password == "" {
		if password, err = readSecret(globals, "Password: "); err != nil {
			return err
		}
	}

	req := models.RegisterRequest{
		Username: c.Username,
		UserCode: c.UserCode,
		Email:    c.Email,
		Password: password,
		RealName: c.RealName,
		Role:     c.Role,
		Phone:    c.Phone,
	}
	if c.ClassID != 0 {
		req.ClassID = &c.ClassID
	}

	user, err := app.Auth.Register(ctx, req)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Fprintf(globals.out(), "Registered %s (id %d). Run 'classdesk login %s' to sign in.\n", user.Username, user.ID, user.Username)
	return nil
}

// PasswordCmd changes the password of the logged in user.
type PasswordCmd struct{}

func (c *PasswordCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}

	if !app.Auth.CheckStatus(ctx) {
		return errNotLoggedIn
	}

	current, err := readSecret(globals, "Current password: ")
	if err != nil {
		return err
	}
	newPassword, err := readSecret(globals, "New password: ")
	if err != nil {
		return err
	}

	out := globals.out()
	strength := validation.PasswordStrength(newPassword)
	fmt.Fprintf(out, "Strength: %s (%d%%)\n", strength.Label, strength.Percent)

	if !validation.IsValidPasswordLength(newPassword, validation.MinPasswordLength) {
		return fmt.Errorf("%w: password must be at least %d characters", validation.ErrInvalid, validation.MinPasswordLength)
	}

	confirm, err := readSecret(globals, "Confirm new password: ")
	if err != nil {
		return err
	}
	if res := validation.ValidatePasswordMatch(newPassword, confirm); !res.Valid {
		return fmt.Errorf("%w: %s", validation.ErrInvalid, res.Error)
	}

	err = app.Auth.ChangePassword(ctx, models.PasswordChangeRequest{
		OldPassword:     current,
		NewPassword:     newPassword,
		ConfirmPassword: confirm,
	})
	if err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}

	fmt.Fprintln(out, "Password changed.")
	return nil
}
