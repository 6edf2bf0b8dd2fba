package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/wolfeidau/classdesk/internal/models"
	"github.com/wolfeidau/classdesk/internal/roles"
	"github.com/wolfeidau/classdesk/internal/validation"
)

// StatusCmd checks whether the saved session is still valid.
type StatusCmd struct{}

func (c *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}

	out := globals.out()
	if !app.Auth.CheckStatus(ctx) {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}

	fmt.Fprintf(out, "Logged in as %s (%s)\n", app.Session.DisplayName(), roles.DisplayName(app.Session.Role()))
	fmt.Fprintf(out, "Home: %s\n", roles.DefaultHomeForRole(app.Session.Role()))
	if path := app.Session.RedirectPath(); path != "" {
		fmt.Fprintf(out, "Pending redirect: %s\n", path)
	}
	return nil
}

// WhoamiCmd refreshes and prints the profile of the logged in user.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}

	if !app.Auth.CheckStatus(ctx) {
		return errNotLoggedIn
	}

	user, err := app.Auth.FetchCurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	avatar := validation.AvatarURL(user.Avatar)
	if avatar == "" {
		avatar = fmt.Sprintf("(default, %s)", app.Session.DefaultAvatarInitial())
	}

	w := tabwriter.NewWriter(globals.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Username:\t%s\n", user.Username)
	fmt.Fprintf(w, "Name:\t%s\n", app.Session.DisplayName())
	fmt.Fprintf(w, "Role:\t%s\n", roles.DisplayName(user.Role))
	fmt.Fprintf(w, "User code:\t%s\n", user.UserCode)
	fmt.Fprintf(w, "Email:\t%s\n", user.Email)
	fmt.Fprintf(w, "Phone:\t%s\n", valueOr(user.Phone, "-"))
	if user.ClassID != nil {
		fmt.Fprintf(w, "Class:\t%d\n", *user.ClassID)
	}
	fmt.Fprintf(w, "Avatar:\t%s\n", avatar)
	fmt.Fprintf(w, "Last login:\t%s\n", valueOr(user.LastLoginTime, "-"))
	fmt.Fprintf(w, "Created:\t%s\n", user.CreatedAt)
	if !validation.ProfileComplete(profileOf(user)) {
		fmt.Fprintf(w, "Profile:\tincomplete\n")
	}
	return w.Flush()
}

func profileOf(u *models.User) *models.Profile {
	return &models.Profile{
		ID:            u.ID,
		Username:      u.Username,
		UserCode:      u.UserCode,
		Email:         u.Email,
		RealName:      u.RealName,
		Role:          u.Role,
		Avatar:        u.Avatar,
		Phone:         u.Phone,
		ClassID:       u.ClassID,
		LastLoginTime: u.LastLoginTime,
		CreatedAt:     u.CreatedAt,
	}
}

// HealthCmd checks that the backend is reachable.
type HealthCmd struct{}

func (c *HealthCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}

	if err := app.Auth.Health(ctx); err != nil {
		return fmt.Errorf("backend at %s is unhealthy: %w", app.Clients.BaseURL, err)
	}

	fmt.Fprintf(globals.out(), "Backend at %s is healthy.\n", app.Clients.BaseURL)
	return nil
}
