package roles

import (
	"slices"

	"github.com/wolfeidau/classdesk/internal/models"
)

// Landing pages for each role.
const (
	AdminHome   = "/admin/dashboard"
	TeacherHome = "/teacher/materials"
	StudentHome = "/student/materials"
	RootPath    = "/"
)

// roleHomes maps each normalized role to its default landing page.
var roleHomes = map[models.Role]string{
	models.RoleAdmin:   AdminHome,
	models.RoleTeacher: TeacherHome,
	models.RoleStudent: StudentHome,
}

var displayNames = map[models.Role]string{
	models.RoleAdmin:   "Administrator",
	models.RoleTeacher: "Teacher",
	models.RoleStudent: "Student",
}

// DefaultHomeForRole returns the landing page for a role, ignoring case.
// Unknown or empty roles land on the root path.
func DefaultHomeForRole(role string) string {
	home, ok := roleHomes[models.Role(role).Normalize()]
	if !ok {
		return RootPath
	}
	return home
}

// HasPermission reports whether userRole satisfies a route's required roles.
// A route without required roles is open to everyone; otherwise the user needs a role
// that appears in requiredRoles, compared case-insensitively.
func HasPermission(userRole string, requiredRoles []string) bool {
	if len(requiredRoles) == 0 {
		return true
	}

	role := models.Role(userRole).Normalize()
	if role == "" {
		return false
	}

	return slices.ContainsFunc(requiredRoles, func(required string) bool {
		return models.Role(required).Normalize() == role
	})
}

// DisplayName returns a human readable role name, or the input when the role is unknown.
func DisplayName(role string) string {
	if name, ok := displayNames[models.Role(role).Normalize()]; ok {
		return name
	}
	return role
}
