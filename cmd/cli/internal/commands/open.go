package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/wolfeidau/classdesk/internal/router"
)

// OpenCmd navigates to a portal page, applying the same access rules as the web client.
type OpenCmd struct {
	Path string `arg:"" help:"Portal path, e.g. /teacher/materials"`
}

func (c *OpenCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := newApp(globals)
	if err != nil {
		return err
	}

	app.Auth.CheckStatus(ctx)

	res, err := app.Navigator.Push(c.Path)
	if err != nil {
		return err
	}

	printPage(globals.out(), res)
	return nil
}

func printPage(out io.Writer, res *router.Result) {
	for _, d := range res.Decisions[:len(res.Decisions)-1] {
		fmt.Fprintf(out, "Redirected (%s) to %s\n", d.Kind, d.To.FullPath())
	}

	title := res.Route.Title
	if title == "" {
		title = res.Route.Name
	}
	fmt.Fprintf(out, "Page: %s (%s)\n", title, res.Location.FullPath())
	for _, name := range slices.Sorted(maps.Keys(res.Params)) {
		fmt.Fprintf(out, "  %s = %s\n", name, res.Params[name])
	}
}

// GetCmd fetches a backend resource and prints it as JSON.
type GetCmd struct {
	Path  string   `arg:"" help:"API path, e.g. /api/v1/materials"`
	Query []string `short:"q" help:"Query parameter as key=value, may be repeated"`
}

func (c *GetCmd) Run(ctx context.Context, globals *Globals) error {
	query := url.Values{}
	for _, kv := range c.Query {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid query parameter %q, expected key=value", kv)
		}
		query.Add(key, value)
	}

	app, err := newApp(globals)
	if err != nil {
		return err
	}

	raw, err := app.Clients.API.Resource(ctx, c.Path, query)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", c.Path, err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	buf.WriteByte('\n')

	_, err = buf.WriteTo(globals.out())
	return err
}
