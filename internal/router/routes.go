package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfeidau/classdesk/internal/models"
	"github.com/wolfeidau/classdesk/internal/roles"
)

const (
	LoginPath = "/login"

	// RedirectParam is the login query parameter carrying the path to resume.
	RedirectParam = "redirect"
)

// Route is a navigable page and its access metadata.
type Route struct {
	Path         string
	Name         string
	Title        string
	RequiresAuth bool
	Roles        []string
	// Redirect sends the navigation elsewhere before any guard runs.
	Redirect string
}

// Table resolves paths to routes. Patterns use chi syntax, so "{id}" captures a segment.
// The first route registered for a pattern wins.
type Table struct {
	mux    *chi.Mux
	routes map[string]Route
}

// NewTable registers routes on a chi mux. Like chi, it panics on malformed patterns.
func NewTable(routes ...Route) *Table {
	t := &Table{mux: chi.NewMux(), routes: make(map[string]Route, len(routes))}
	for _, r := range routes {
		if _, dup := t.routes[r.Path]; dup {
			continue
		}
		t.routes[r.Path] = r
		t.mux.Get(r.Path, noopHandler)
	}
	return t
}

// the mux only resolves routes, nothing is ever served
func noopHandler(http.ResponseWriter, *http.Request) {}

// Match finds the route for path and returns its parameters.
// Trailing slashes are ignored and empty parameter segments never match.
func (t *Table) Match(path string) (Route, map[string]string, bool) {
	path = "/" + strings.Trim(path, "/")

	rctx := chi.NewRouteContext()
	if !t.mux.Match(rctx, http.MethodGet, path) {
		return Route{}, nil, false
	}

	route, ok := t.routes[rctx.RoutePattern()]
	if !ok {
		return Route{}, nil, false
	}

	var params map[string]string
	for i, key := range rctx.URLParams.Keys {
		value := rctx.URLParams.Values[i]
		if value == "" {
			return Route{}, nil, false
		}
		if params == nil {
			params = make(map[string]string, len(rctx.URLParams.Keys))
		}
		params[key] = value
	}

	return route, params, true
}

func restricted(path, name, title string, role models.Role) Route {
	return Route{Path: path, Name: name, Title: title, RequiresAuth: true, Roles: []string{string(role)}}
}

// DefaultRoutes is the portal's route table.
func DefaultRoutes() *Table {
	return NewTable(
		Route{Path: roles.RootPath, Name: "Home", Title: "Home", Redirect: LoginPath},
		Route{Path: LoginPath, Name: "Login", Title: "Login"},
		Route{Path: "/attendance", Name: "AttendanceDemo", Title: "Attendance demo"},

		restricted(roles.AdminHome, "AdminDashboard", "Dashboard", models.RoleAdmin),
		restricted("/admin/users", "UserManagement", "User management", models.RoleAdmin),

		restricted(roles.TeacherHome, "MaterialCenter", "Material center", models.RoleTeacher),
		restricted("/teacher/materials/upload", "MaterialUpload", "Upload material", models.RoleTeacher),
		restricted("/teacher/materials/my", "MyMaterials", "My materials", models.RoleTeacher),
		restricted("/teacher/material/{id}", "MaterialDetail", "Material detail", models.RoleTeacher),
		restricted("/teacher/grades/list", "GradeList", "Grade list", models.RoleTeacher),
		restricted("/teacher/grades/input/add", "GradeInputSingle", "Add grade", models.RoleTeacher),
		restricted("/teacher/grades/input/import", "GradeInputBatch", "Import grades", models.RoleTeacher),
		restricted("/teacher/grades/statistics", "GradeStatistics", "Grade statistics", models.RoleTeacher),
		restricted("/teacher/grades/warnings", "GradeWarnings", "Academic warnings", models.RoleTeacher),
		restricted("/teacher/interaction/poll", "TeacherPoll", "Polls", models.RoleTeacher),
		restricted("/teacher/interaction/question", "TeacherQuestion", "Questions", models.RoleTeacher),
		restricted("/teacher/interaction/barrage", "TeacherBarrage", "Barrage", models.RoleTeacher),

		restricted(roles.StudentHome, "StudentMaterials", "Materials", models.RoleStudent),
		restricted("/student/grades", "StudentGrades", "Grades", models.RoleStudent),
		restricted("/student/grades/my-grades", "MyGrades", "My grades", models.RoleStudent),
		restricted("/student/grades/analysis", "GradeAnalysis", "Grade analysis", models.RoleStudent),
		restricted("/student/grades/warnings", "StudentWarnings", "Warnings and notices", models.RoleStudent),
		restricted("/student/interaction/poll", "StudentPoll", "Polls", models.RoleStudent),
		restricted("/student/interaction/question", "StudentQuestion", "Questions", models.RoleStudent),
		restricted("/student/interaction/barrage", "StudentBarrage", "Barrage", models.RoleStudent),
	)
}
