package models

import "strings"

// Role is the portal role carried on a user identity.
// The backend may return either casing, so roles are always compared after Normalize.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Normalize returns the lower-cased, trimmed form of the role.
func (r Role) Normalize() Role {
	return Role(strings.ToLower(strings.TrimSpace(string(r))))
}

// Is reports whether r and other name the same role, ignoring case.
func (r Role) Is(other Role) bool {
	return r.Normalize() == other.Normalize()
}

// Valid returns true for the three roles known to the portal.
func (r Role) Valid() bool {
	switch r.Normalize() {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// User is the identity record returned by the login endpoint and persisted in the session.
type User struct {
	ID            int64   `json:"id"`
	Username      string  `json:"username"`
	UserCode      string  `json:"userCode,omitempty"`
	Email         string  `json:"email"`
	RealName      string  `json:"realName"`
	Role          string  `json:"role"`
	Avatar        *string `json:"avatar,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	ClassID       *int64  `json:"classId,omitempty"`
	Status        bool    `json:"status"`
	LastLoginTime *string `json:"lastLoginTime,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// HasRole returns true if the user carries the given role, ignoring case.
func (u *User) HasRole(role Role) bool {
	if u == nil {
		return false
	}
	return Role(u.Role).Is(role)
}

// Clone returns a deep copy so callers cannot mutate shared session state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Avatar = cloneString(u.Avatar)
	c.Phone = cloneString(u.Phone)
	c.LastLoginTime = cloneString(u.LastLoginTime)
	if u.ClassID != nil {
		id := *u.ClassID
		c.ClassID = &id
	}
	return &c
}

// Profile is the payload of the current-user profile endpoint.
// It lacks the account status and update timestamp carried by User.
type Profile struct {
	ID            int64   `json:"id"`
	Username      string  `json:"username"`
	UserCode      string  `json:"userCode"`
	Email         string  `json:"email"`
	RealName      string  `json:"realName"`
	Role          string  `json:"role"`
	Avatar        *string `json:"avatar,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	ClassID       *int64  `json:"classId,omitempty"`
	LastLoginTime *string `json:"lastLoginTime,omitempty"`
	CreatedAt     string  `json:"createdAt"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
