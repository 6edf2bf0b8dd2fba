package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/classdesk/internal/models"
	"github.com/wolfeidau/classdesk/internal/notify"
	"github.com/wolfeidau/classdesk/internal/roles"
	"github.com/wolfeidau/classdesk/internal/session"
)

func newTestGuard(t *testing.T) (*Guard, *session.Store, *notify.Recorder) {
	t.Helper()
	store := session.New(session.NewMemoryStorage())
	rec := &notify.Recorder{}
	routes := NewTable(
		Route{Path: "/", Name: "Home"},
		Route{Path: LoginPath, Name: "Login"},
		Route{Path: "/public", Name: "Public"},
		Route{Path: "/protected", Name: "Protected", RequiresAuth: true},
		Route{Path: "/admin/users", Name: "Users", RequiresAuth: true, Roles: []string{"admin"}},
		Route{Path: "/teacher/materials", Name: "TeacherMaterials", RequiresAuth: true, Roles: []string{"TEACHER"}},
		Route{Path: "/student/materials", Name: "StudentMaterials", RequiresAuth: true, Roles: []string{"student"}},
	)
	return NewGuard(routes, store, rec), store, rec
}

func login(store *session.Store, role string) {
	store.SetUser(&models.User{ID: 1, Username: role + "1", Role: role, Status: true})
}

func TestGuard_Unauthenticated(t *testing.T) {
	t.Run("protected route redirects to login", func(t *testing.T) {
		g, store, _ := newTestGuard(t)

		d := g.Evaluate(MustParseLocation("/protected"))

		assert.Equal(t, RedirectToLogin, d.Kind)
		assert.Equal(t, LoginPath, d.To.Path)
		assert.Equal(t, "/protected", d.To.QueryValue(RedirectParam))
		assert.False(t, d.Replace)
		assert.Equal(t, "/protected", store.RedirectPath())
	})

	t.Run("redirect keeps the full path with query", func(t *testing.T) {
		g, store, _ := newTestGuard(t)

		d := g.Evaluate(MustParseLocation("/protected?tab=recent"))

		assert.Equal(t, RedirectToLogin, d.Kind)
		assert.Equal(t, "/protected?tab=recent", d.To.QueryValue(RedirectParam))
		assert.Equal(t, "/protected?tab=recent", store.RedirectPath())
	})

	t.Run("public route is allowed", func(t *testing.T) {
		g, store, _ := newTestGuard(t)

		d := g.Evaluate(MustParseLocation("/public"))

		assert.Equal(t, Allowed, d.Kind)
		assert.Equal(t, "/public", d.To.Path)
		assert.Empty(t, store.RedirectPath())
	})

	t.Run("login page is allowed", func(t *testing.T) {
		g, _, _ := newTestGuard(t)

		d := g.Evaluate(MustParseLocation("/login?redirect=/protected"))
		assert.Equal(t, Allowed, d.Kind)
	})

	t.Run("unknown path is allowed by the guard", func(t *testing.T) {
		g, _, _ := newTestGuard(t)
		assert.Equal(t, Allowed, g.Evaluate(MustParseLocation("/nowhere")).Kind)
	})
}

func TestGuard_RoleDenied(t *testing.T) {
	g, store, rec := newTestGuard(t)
	login(store, "student")

	d := g.Evaluate(MustParseLocation("/admin/users"))

	assert.Equal(t, RedirectDenied, d.Kind)
	assert.Equal(t, roles.StudentHome, d.To.Path)
	assert.True(t, d.Replace)
	assert.Equal(t, 1, rec.Count(notify.LevelWarning))
}

func TestGuard_RoleAllowed(t *testing.T) {
	for _, role := range []string{"teacher", "Teacher", "TEACHER"} {
		t.Run(role, func(t *testing.T) {
			g, store, rec := newTestGuard(t)
			login(store, role)

			d := g.Evaluate(MustParseLocation("/teacher/materials"))

			assert.Equal(t, Allowed, d.Kind)
			assert.Empty(t, rec.Messages())
		})
	}
}

func TestGuard_AuthenticatedOnLogin(t *testing.T) {
	t.Run("goes to role home without redirect", func(t *testing.T) {
		g, store, _ := newTestGuard(t)
		login(store, "teacher")

		d := g.Evaluate(MustParseLocation("/login"))

		assert.Equal(t, RedirectToRoleHome, d.Kind)
		assert.Equal(t, roles.TeacherHome, d.To.Path)
		assert.Empty(t, store.RedirectPath())
	})

	t.Run("query redirect wins over stored path", func(t *testing.T) {
		g, store, _ := newTestGuard(t)
		login(store, "teacher")
		store.SetRedirectPath("/public")

		d := g.Evaluate(MustParseLocation("/login?redirect=/protected"))

		assert.Equal(t, RedirectToRoleHome, d.Kind)
		assert.Equal(t, "/protected", d.To.Path)
		assert.Empty(t, store.RedirectPath())
	})

	t.Run("stored path is used and cleared", func(t *testing.T) {
		g, store, _ := newTestGuard(t)
		login(store, "admin")
		store.SetRedirectPath("/admin/users?page=2")

		d := g.Evaluate(MustParseLocation("/login"))

		assert.Equal(t, "/admin/users", d.To.Path)
		assert.Equal(t, "2", d.To.QueryValue("page"))
		assert.Empty(t, store.RedirectPath())
	})

	t.Run("redirect back to login falls back to role home", func(t *testing.T) {
		g, store, _ := newTestGuard(t)
		login(store, "STUDENT")

		d := g.Evaluate(MustParseLocation("/login?redirect=/login"))

		assert.Equal(t, RedirectToRoleHome, d.Kind)
		assert.Equal(t, roles.StudentHome, d.To.Path)
	})

	t.Run("unknown role goes to root", func(t *testing.T) {
		g, store, _ := newTestGuard(t)
		login(store, "auditor")

		d := g.Evaluate(MustParseLocation("/login"))
		assert.Equal(t, "/", d.To.Path)
	})
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "allowed", Allowed.String())
	require.Equal(t, "redirect-to-login", RedirectToLogin.String())
	require.Equal(t, "redirect-to-role-home", RedirectToRoleHome.String())
	require.Equal(t, "redirect-denied", RedirectDenied.String())
	require.Equal(t, "unknown", Kind(42).String())
}
