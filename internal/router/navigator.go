package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/classdesk/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrRouteNotFound is returned when no route matches the requested path.
	ErrRouteNotFound = errors.New("route not found")

	// ErrRedirectLoop is returned when guard redirects do not settle.
	ErrRedirectLoop = errors.New("too many redirects")
)

const maxRedirects = 10

// Navigator holds the current location and history, and runs the guard on every navigation.
// Navigations are serialised: one guard evaluation per attempt, never overlapping.
type Navigator struct {
	mu      sync.Mutex
	routes  *Table
	guard   *Guard
	current Location
	history []Location
}

// NewNavigator creates a navigator positioned at the root path.
func NewNavigator(routes *Table, guard *Guard) *Navigator {
	root := Location{Path: "/"}
	return &Navigator{
		routes:  routes,
		guard:   guard,
		current: root,
		history: []Location{root},
	}
}

// Result describes a completed navigation.
type Result struct {
	Location Location
	Route    Route
	Params   map[string]string
	// Decisions lists every guard decision taken, the last one is always Allowed.
	// Static route redirects are followed silently and do not appear here.
	Decisions []Decision
}

// Push navigates to raw and adds the final location to history.
func (n *Navigator) Push(raw string) (*Result, error) {
	return n.navigate(raw, false)
}

// Replace navigates to raw and replaces the current history entry.
func (n *Navigator) Replace(raw string) (*Result, error) {
	return n.navigate(raw, true)
}

// Navigate is Push for callers that only care about failure.
func (n *Navigator) Navigate(ctx context.Context, raw string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := n.Push(raw)
	return err
}

// Current returns the current location.
func (n *Navigator) Current() Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// CurrentPath returns the path of the current location.
func (n *Navigator) CurrentPath() string {
	return n.Current().Path
}

// History returns the visited locations, oldest first.
func (n *Navigator) History() []Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Location(nil), n.history...)
}

func (n *Navigator) navigate(raw string, replace bool) (*Result, error) {
	to, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	res := &Result{}
	for range maxRedirects {
		route, params, ok := n.routes.Match(to.Path)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, to.Path)
		}

		if route.Redirect != "" {
			next, err := ParseLocation(route.Redirect)
			if err != nil {
				return nil, fmt.Errorf("route %s: %w", route.Name, err)
			}
			log.Debug().Str("from", to.FullPath()).Str("to", next.FullPath()).Msg("following route redirect")
			to = next
			continue
		}

		d := n.guard.Evaluate(to)
		res.Decisions = append(res.Decisions, d)
		telemetry.GetMetrics().NavigationsTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("decision", d.Kind.String())))

		if d.Kind == Allowed {
			n.commit(to, replace)
			res.Location = to
			res.Route = route
			res.Params = params

			log.Debug().
				Str("to", to.FullPath()).
				Str("route", route.Name).
				Int("hops", len(res.Decisions)).
				Msg("navigation complete")

			return res, nil
		}

		log.Debug().
			Str("from", to.FullPath()).
			Str("to", d.To.FullPath()).
			Stringer("kind", d.Kind).
			Msg("navigation redirected")

		telemetry.GetMetrics().RedirectsTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("kind", d.Kind.String())))

		to = d.To
		replace = replace || d.Replace
	}

	return nil, fmt.Errorf("%w: last target %s", ErrRedirectLoop, to.FullPath())
}

func (n *Navigator) commit(to Location, replace bool) {
	n.current = to
	if replace && len(n.history) > 0 {
		n.history[len(n.history)-1] = to
		return
	}
	n.history = append(n.history, to)
}
