package router

import (
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/classdesk/internal/models"
	"github.com/wolfeidau/classdesk/internal/notify"
	"github.com/wolfeidau/classdesk/internal/roles"
)

// Session is the view of the session store the guard needs.
type Session interface {
	IsAuthenticated() bool
	User() *models.User
	RedirectPath() string
	SetRedirectPath(path string)
	ClearRedirectPath()
}

// Kind is the outcome of a guard evaluation.
type Kind int

const (
	Allowed Kind = iota
	RedirectToLogin
	RedirectToRoleHome
	RedirectDenied
)

func (k Kind) String() string {
	switch k {
	case Allowed:
		return "allowed"
	case RedirectToLogin:
		return "redirect-to-login"
	case RedirectToRoleHome:
		return "redirect-to-role-home"
	case RedirectDenied:
		return "redirect-denied"
	default:
		return "unknown"
	}
}

// Decision is the single result of evaluating one navigation attempt.
// For Allowed, To is the requested location.
type Decision struct {
	Kind    Kind
	To      Location
	Replace bool
}

// Guard decides whether a navigation may proceed.
type Guard struct {
	routes   *Table
	session  Session
	notifier notify.Notifier
}

func NewGuard(routes *Table, session Session, notifier notify.Notifier) *Guard {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Guard{routes: routes, session: session, notifier: notifier}
}

// Evaluate applies the access rules to a navigation target.
// Unknown paths carry no metadata and are allowed; resolving them is the navigator's job.
func (g *Guard) Evaluate(to Location) Decision {
	route, _, _ := g.routes.Match(to.Path)
	authenticated := g.session.IsAuthenticated()

	if route.RequiresAuth && !authenticated {
		target := to.FullPath()
		g.session.SetRedirectPath(target)

		log.Debug().Str("path", target).Msg("not authenticated, redirecting to login")

		return Decision{Kind: RedirectToLogin, To: LoginLocation(target)}
	}

	role := currentRole(g.session)

	if route.RequiresAuth && len(route.Roles) > 0 && !roles.HasPermission(role, route.Roles) {
		log.Warn().
			Str("path", to.Path).
			Str("role", role).
			Strs("required", route.Roles).
			Msg("role not permitted, redirecting to role home")

		g.notifier.Notify(notify.LevelWarning, "You do not have permission to access this page")

		return Decision{
			Kind:    RedirectDenied,
			To:      Location{Path: roles.DefaultHomeForRole(role)},
			Replace: true,
		}
	}

	if to.Path == LoginPath && authenticated {
		dest := to.QueryValue(RedirectParam)
		if dest == "" {
			dest = g.session.RedirectPath()
		}
		g.session.ClearRedirectPath()

		loc := Location{Path: roles.DefaultHomeForRole(role)}
		if dest != "" {
			if parsed, err := ParseLocation(dest); err == nil && parsed.Path != LoginPath {
				loc = parsed
			}
		}

		log.Debug().Str("to", loc.FullPath()).Msg("already authenticated, leaving login page")

		return Decision{Kind: RedirectToRoleHome, To: loc}
	}

	return Decision{Kind: Allowed, To: to}
}

func currentRole(s Session) string {
	if u := s.User(); u != nil {
		return u.Role
	}
	return ""
}
