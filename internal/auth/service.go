// Package auth keeps the session store consistent with the backend's view of the login.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/classdesk/internal/client"
	"github.com/wolfeidau/classdesk/internal/models"
	"github.com/wolfeidau/classdesk/internal/roles"
	"github.com/wolfeidau/classdesk/internal/telemetry"
	"github.com/wolfeidau/classdesk/internal/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var _ Backend = (*client.API)(nil)

// Backend is the subset of the backend API used by the service.
type Backend interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Logout(ctx context.Context) (*models.MessageResponse, error)
	Status(ctx context.Context) (*models.MessageResponse, error)
	LoginUser(ctx context.Context) (*models.Profile, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	ChangePassword(ctx context.Context, req models.PasswordChangeRequest) (*models.MessageResponse, error)
	Health(ctx context.Context) error
}

// Session is the session state the service reads and writes.
type Session interface {
	User() *models.User
	IsAuthenticated() bool
	SetUser(user *models.User)
	ClearUser()
	SetLoading(loading bool)
	RedirectPath() string
	ClearRedirectPath()
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used to stamp merged profiles.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates login, logout and status checks.
type Service struct {
	backend Backend
	session Session
	now     func() time.Time
}

func New(backend Backend, session Session, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		session: session,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login sends the credentials once. On success the returned user becomes the session user;
// on any failure the session is cleared and a *LoginError is returned.
func (s *Service) Login(ctx context.Context, identifier, password string) (user *models.User, err error) {
	ctx, span := telemetry.StartAuthSpan(ctx, "login")
	defer func() { telemetry.EndSpan(span, err) }()

	s.session.SetLoading(true)
	defer s.session.SetLoading(false)

	m := telemetry.GetMetrics()
	started := s.now()
	m.LoginAttemptsTotal.Add(ctx, 1)
	defer func() {
		m.LoginDuration.Record(ctx, float64(s.now().Sub(started).Milliseconds()))
	}()

	resp, err := s.backend.Login(ctx, models.LoginRequest{LoginIdentifier: identifier, Password: password})
	if err == nil && (resp == nil || resp.User == nil) {
		err = fmt.Errorf("%w: login response has no user", client.ErrInvalidResponse)
	}
	if err != nil {
		s.session.ClearUser()

		loginErr := Classify(err)
		m.LoginFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", loginErr.Kind.String())))

		log.Debug().Err(err).Stringer("kind", loginErr.Kind).Msg("login failed")

		return nil, loginErr
	}

	s.session.SetUser(resp.User)

	log.Debug().Str("username", resp.User.Username).Str("role", resp.User.Role).Msg("logged in")

	return s.session.User(), nil
}

// LoginFlow logs in and resolves where to go next: the redirect query value, else the
// stored redirect path, else the home page for the user's role. The stored path is cleared.
func (s *Service) LoginFlow(ctx context.Context, identifier, password, queryRedirect string) (string, error) {
	user, err := s.Login(ctx, identifier, password)
	if err != nil {
		return "", err
	}

	dest := queryRedirect
	if dest == "" {
		dest = s.session.RedirectPath()
	}
	if dest == "" {
		dest = roles.DefaultHomeForRole(user.Role)
	}

	s.session.ClearRedirectPath()

	return dest, nil
}

// Logout always ends with the session cleared, whatever the backend says.
func (s *Service) Logout(ctx context.Context) {
	ctx, span := telemetry.StartAuthSpan(ctx, "logout")

	s.session.SetLoading(true)
	defer s.session.SetLoading(false)

	_, err := s.backend.Logout(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("backend logout failed, clearing local session anyway")
	}

	s.session.ClearUser()
	telemetry.GetMetrics().LogoutsTotal.Add(ctx, 1)
	telemetry.EndSpan(span, err)
}

// CheckStatus probes the backend session when the local session is not authenticated.
// Failures clear the session and are only logged. It reports whether the session is
// authenticated afterwards.
func (s *Service) CheckStatus(ctx context.Context) bool {
	if s.session.IsAuthenticated() {
		return true
	}

	ctx, span := telemetry.StartAuthSpan(ctx, "status")

	s.session.SetLoading(true)
	defer s.session.SetLoading(false)

	err := s.checkStatus(ctx)

	outcome := "authenticated"
	if err != nil {
		outcome = "cleared"
		log.Debug().Err(err).Msg("status check failed, clearing session")
		s.session.ClearUser()
	}
	telemetry.GetMetrics().StatusChecksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	telemetry.EndSpan(span, err)

	return err == nil
}

func (s *Service) checkStatus(ctx context.Context) error {
	if _, err := s.backend.Status(ctx); err != nil {
		return err
	}

	cached := s.session.User()
	if cached == nil {
		_, err := s.fetchCurrentUser(ctx)
		return err
	}

	s.session.SetUser(cached)
	return nil
}

// FetchCurrentUser loads the profile and merges it into the cached user. The profile
// lacks status and updatedAt, so those are kept from the cache or defaulted.
// On failure the session is cleared and the error returned.
func (s *Service) FetchCurrentUser(ctx context.Context) (user *models.User, err error) {
	ctx, span := telemetry.StartAuthSpan(ctx, "fetch_current_user")
	defer func() { telemetry.EndSpan(span, err) }()

	s.session.SetLoading(true)
	defer s.session.SetLoading(false)

	user, err = s.fetchCurrentUser(ctx)
	if err != nil {
		s.session.ClearUser()
		return nil, err
	}
	return user, nil
}

func (s *Service) fetchCurrentUser(ctx context.Context) (*models.User, error) {
	profile, err := s.backend.LoginUser(ctx)
	if err != nil {
		return nil, err
	}

	merged := mergeProfile(s.session.User(), profile, s.now())
	s.session.SetUser(merged)

	return s.session.User(), nil
}

func mergeProfile(cached *models.User, p *models.Profile, now time.Time) *models.User {
	u := cached.Clone()
	if u == nil {
		u = &models.User{
			Status:    true,
			UpdatedAt: now.UTC().Format(time.RFC3339),
		}
	}

	if p.ID != 0 {
		u.ID = p.ID
	}
	u.Username = p.Username
	setIfNotEmpty(&u.UserCode, p.UserCode)
	setIfNotEmpty(&u.Email, p.Email)
	setIfNotEmpty(&u.RealName, p.RealName)
	setIfNotEmpty(&u.Role, p.Role)
	setIfNotEmpty(&u.CreatedAt, p.CreatedAt)
	if p.Avatar != nil {
		u.Avatar = p.Avatar
	}
	if p.Phone != nil {
		u.Phone = p.Phone
	}
	if p.ClassID != nil {
		u.ClassID = p.ClassID
	}
	if p.LastLoginTime != nil {
		u.LastLoginTime = p.LastLoginTime
	}

	return u
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Register validates the request and creates an account. It does not log in.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (user *models.User, err error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartAuthSpan(ctx, "register")
	defer func() { telemetry.EndSpan(span, err) }()

	s.session.SetLoading(true)
	defer s.session.SetLoading(false)

	return s.backend.Register(ctx, req)
}

// ChangePassword validates the request and changes the password of the logged in user.
func (s *Service) ChangePassword(ctx context.Context, req models.PasswordChangeRequest) (err error) {
	if err := validation.Struct(req); err != nil {
		return err
	}

	ctx, span := telemetry.StartAuthSpan(ctx, "change_password")
	defer func() { telemetry.EndSpan(span, err) }()

	s.session.SetLoading(true)
	defer s.session.SetLoading(false)

	_, err = s.backend.ChangePassword(ctx, req)
	return err
}

// Health reports whether the backend is reachable.
func (s *Service) Health(ctx context.Context) (err error) {
	ctx, span := telemetry.StartAuthSpan(ctx, "health")
	defer func() { telemetry.EndSpan(span, err) }()

	return s.backend.Health(ctx)
}
