package session

import (
	"encoding/json"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/classdesk/internal/models"
)

// Storage keys.
const (
	KeyUser         = "user"
	KeyLoggedIn     = "isLoggedIn"
	KeyRedirectPath = "redirectPath"

	loggedInValue = "true"
)

// Store is the single source of truth for who is logged in.
//
// IsAuthenticated is authoritative: a cached user may be present while the
// session is not authenticated (for example before a status check completes),
// but an authenticated session always has a user.
//
// Mutations are last-writer-wins; every write is mirrored to Storage so the
// session survives restarts. Storage failures are logged and never surface to
// callers, the in-memory state stays authoritative.
type Store struct {
	mu            sync.RWMutex
	storage       Storage
	user          *models.User
	authenticated bool
	redirectPath  string
	loading       bool
}

// New creates a store backed by storage and restores any persisted state.
func New(storage Storage) *Store {
	s := &Store{storage: storage}
	s.Restore()
	return s
}

// Restore reloads the in-memory state from storage.
// Missing or malformed data leaves the session logged out and clears the persisted user.
func (s *Store) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.authenticated = false
	s.redirectPath = ""

	savedUser, hasUser, err := s.storage.Get(KeyUser)
	if err != nil {
		log.Warn().Err(err).Msg("failed to restore session, clearing")
		s.clearUserLocked()
		return
	}

	loggedIn, _, err := s.storage.Get(KeyLoggedIn)
	if err != nil {
		log.Warn().Err(err).Msg("failed to restore session, clearing")
		s.clearUserLocked()
		return
	}

	if hasUser && loggedIn == loggedInValue {
		var user *models.User
		if err := json.Unmarshal([]byte(savedUser), &user); err != nil || user == nil {
			log.Warn().Err(err).Msg("persisted user is malformed, clearing")
			s.clearUserLocked()
		} else {
			s.user = user
			s.authenticated = true
		}
	}

	redirect, _, err := s.storage.Get(KeyRedirectPath)
	if err != nil {
		log.Warn().Err(err).Msg("failed to restore redirect path")
		return
	}
	s.redirectPath = redirect

	log.Debug().
		Bool("authenticated", s.authenticated).
		Str("redirectPath", s.redirectPath).
		Msg("session restored")
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// Role returns the current user's role as sent by the backend, or "".
func (s *Store) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.Role
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Store) RedirectPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.redirectPath
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetLoading marks an auth call as in flight.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// SetUser marks the session authenticated as user and persists it.
// A nil user is treated as ClearUser to keep the authenticated-implies-user invariant.
func (s *Store) SetUser(user *models.User) {
	if user == nil {
		s.ClearUser()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = user.Clone()
	s.authenticated = true

	data, err := json.Marshal(s.user)
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode user for storage")
		return
	}
	if err := s.storage.Set(KeyUser, string(data)); err != nil {
		log.Warn().Err(err).Msg("failed to persist user")
	}
	if err := s.storage.Set(KeyLoggedIn, loggedInValue); err != nil {
		log.Warn().Err(err).Msg("failed to persist login flag")
	}

	log.Debug().Str("username", user.Username).Str("role", user.Role).Msg("session user set")
}

// ClearUser logs the session out locally. Safe to call when already logged out.
func (s *Store) ClearUser() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearUserLocked()
}

func (s *Store) clearUserLocked() {
	s.user = nil
	s.authenticated = false

	if err := s.storage.Remove(KeyUser); err != nil {
		log.Warn().Err(err).Msg("failed to remove persisted user")
	}
	if err := s.storage.Remove(KeyLoggedIn); err != nil {
		log.Warn().Err(err).Msg("failed to remove persisted login flag")
	}
}

// SetRedirectPath remembers the path to resume after a login detour.
func (s *Store) SetRedirectPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.redirectPath = path
	if err := s.storage.Set(KeyRedirectPath, path); err != nil {
		log.Warn().Err(err).Msg("failed to persist redirect path")
	}
}

// ClearRedirectPath forgets the stored redirect path. Idempotent.
func (s *Store) ClearRedirectPath() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.redirectPath = ""
	if err := s.storage.Remove(KeyRedirectPath); err != nil {
		log.Warn().Err(err).Msg("failed to remove redirect path")
	}
}

func (s *Store) IsAdmin() bool {
	return s.hasRole(models.RoleAdmin)
}

func (s *Store) IsTeacher() bool {
	return s.hasRole(models.RoleTeacher)
}

func (s *Store) IsStudent() bool {
	return s.hasRole(models.RoleStudent)
}

func (s *Store) hasRole(role models.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.HasRole(role)
}

// DisplayName is the user's real name, falling back to the username.
func (s *Store) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return displayName(s.user)
}

// DefaultAvatarInitial is the upper-cased first letter of the display name,
// "U" for a user without any name, and "" when nobody is logged in.
func (s *Store) DefaultAvatarInitial() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return ""
	}

	name := displayName(s.user)
	if name == "" {
		return "U"
	}

	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r))
}

func displayName(u *models.User) string {
	if u == nil {
		return ""
	}
	if strings.TrimSpace(u.RealName) != "" {
		return u.RealName
	}
	return u.Username
}
