package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/classdesk/internal/client"
	"github.com/wolfeidau/classdesk/internal/models"
	"github.com/wolfeidau/classdesk/internal/session"
	"github.com/wolfeidau/classdesk/internal/validation"
)

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

// fakeBackend serves the auth endpoints with canned responses.
type fakeBackend struct {
	mu        sync.Mutex
	loginCode int
	loginBody string
	status    int
	profile   string
	logout    int
	calls     map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		loginCode: http.StatusOK,
		loginBody: `{"message":"ok","user":{"id":3,"username":"teacher1","real_name":"Han Mei","role":"teacher","status":true,"updated_at":"2025-01-01T00:00:00Z"}}`,
		status:    http.StatusOK,
		profile:   `{"username":"teacher1","real_name":"Han Mei","email":"han@example.edu","role":"teacher","user_code":"T001","created_at":"2024-09-01T08:00:00"}`,
		logout:    http.StatusOK,
		calls:     map[string]int{},
	}
}

func (f *fakeBackend) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case client.LoginPath:
		w.WriteHeader(f.loginCode)
		w.Write([]byte(f.loginBody))
	case client.LogoutPath:
		w.WriteHeader(f.logout)
		w.Write([]byte(`{"message":"bye"}`))
	case client.StatusPath:
		w.WriteHeader(f.status)
		w.Write([]byte(`{"message":"ok"}`))
	case client.ProfilePath:
		w.Write([]byte(f.profile))
	case client.RegisterPath:
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":12,"username":"new1","role":"student"}`))
	case client.ChangePasswordPath:
		w.Write([]byte(`{"message":"updated"}`))
	case client.HealthPath:
		w.Write([]byte(`{"status":"ok"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestService(t *testing.T, backend *fakeBackend) (*Service, *session.Store) {
	t.Helper()
	svc, store, _ := newTestServiceWithStorage(t, backend)
	return svc, store
}

func newTestServiceWithStorage(t *testing.T, backend *fakeBackend) (*Service, *session.Store, *session.MemoryStorage) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	storage := session.NewMemoryStorage()
	store := session.New(storage)
	api := client.NewAPI(srv.URL, srv.Client(), nil)
	return New(api, store, WithClock(func() time.Time { return fixedNow })), store, storage
}

func assertPersisted(t *testing.T, storage session.Storage, key string, want bool) {
	t.Helper()
	_, ok, err := storage.Get(key)
	require.NoError(t, err)
	assert.Equal(t, want, ok, key)
}

func TestService_Login(t *testing.T) {
	t.Run("success sets the session user", func(t *testing.T) {
		svc, store, storage := newTestServiceWithStorage(t, newFakeBackend())

		user, err := svc.Login(context.Background(), "teacher1", "secret")
		require.NoError(t, err)

		want := &models.User{
			ID:        3,
			Username:  "teacher1",
			RealName:  "Han Mei",
			Role:      "teacher",
			Status:    true,
			UpdatedAt: "2025-01-01T00:00:00Z",
		}
		assert.Equal(t, want, user)
		assert.Equal(t, want, store.User())

		reloaded := session.New(storage)
		assert.Equal(t, want, reloaded.User())
		assert.True(t, reloaded.IsAuthenticated())

		assert.True(t, store.IsAuthenticated())
		assert.True(t, store.IsTeacher())
		assert.False(t, store.IsLoading())
	})

	t.Run("invalid credentials clear the session", func(t *testing.T) {
		backend := newFakeBackend()
		svc, store := newTestService(t, backend)
		store.SetUser(&models.User{ID: 1, Username: "old", Role: "student"})

		backend.loginCode = http.StatusUnauthorized
		backend.loginBody = `{"message":"bad credentials"}`

		_, err := svc.Login(context.Background(), "teacher1", "wrong")

		var loginErr *LoginError
		require.ErrorAs(t, err, &loginErr)
		assert.Equal(t, InvalidCredentials, loginErr.Kind)
		assert.Equal(t, MsgInvalidCredentials, err.Error())
		assert.False(t, store.IsAuthenticated())
		assert.Nil(t, store.User())
		assert.False(t, store.IsLoading())
	})

	t.Run("server fault", func(t *testing.T) {
		backend := newFakeBackend()
		backend.loginCode = http.StatusInternalServerError
		svc, _ := newTestService(t, backend)

		_, err := svc.Login(context.Background(), "teacher1", "secret")

		var loginErr *LoginError
		require.ErrorAs(t, err, &loginErr)
		assert.Equal(t, ServerFault, loginErr.Kind)

		var httpErr *client.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	})

	t.Run("server message is surfaced for other statuses", func(t *testing.T) {
		backend := newFakeBackend()
		backend.loginCode = http.StatusForbidden
		backend.loginBody = `{"message":"account disabled"}`
		svc, _ := newTestService(t, backend)

		_, err := svc.Login(context.Background(), "teacher1", "secret")
		require.EqualError(t, err, "account disabled")
	})

	t.Run("login is attempted exactly once", func(t *testing.T) {
		backend := newFakeBackend()
		backend.loginCode = http.StatusServiceUnavailable
		svc, _ := newTestService(t, backend)

		_, err := svc.Login(context.Background(), "teacher1", "secret")
		require.Error(t, err)
		assert.Equal(t, 1, backend.count(client.LoginPath))
	})

	t.Run("response without user is rejected", func(t *testing.T) {
		backend := newFakeBackend()
		backend.loginBody = `{"message":"ok"}`
		svc, store := newTestService(t, backend)

		_, err := svc.Login(context.Background(), "teacher1", "secret")
		require.ErrorIs(t, err, client.ErrInvalidResponse)
		assert.False(t, store.IsAuthenticated())
	})

	t.Run("connection reset while reading the response", func(t *testing.T) {
		next := roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       io.NopCloser(io.MultiReader(strings.NewReader(`{"message":"ok","user":{"id":3,"use`), resetReader{})),
				Request:    req,
			}, nil
		})

		store := session.New(session.NewMemoryStorage())
		httpClient := &http.Client{Transport: client.NewAuthTransport(next, store, nil, nil)}
		svc := New(client.NewAPI("http://backend.test", httpClient, nil), store)

		_, err := svc.Login(context.Background(), "teacher1", "secret")

		var loginErr *LoginError
		require.ErrorAs(t, err, &loginErr)
		assert.Equal(t, NetworkFailure, loginErr.Kind)
		assert.Equal(t, MsgNetworkFailure, err.Error())
		assert.ErrorIs(t, err, syscall.ECONNRESET)
		assert.False(t, store.IsAuthenticated())
	})

	t.Run("unreachable backend", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		store := session.New(session.NewMemoryStorage())
		svc := New(client.NewAPI(url, &http.Client{}, nil), store)

		_, err := svc.Login(context.Background(), "teacher1", "secret")

		var loginErr *LoginError
		require.ErrorAs(t, err, &loginErr)
		assert.Equal(t, NetworkFailure, loginErr.Kind)
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

type resetReader struct{}

func (resetReader) Read([]byte) (int, error) { return 0, syscall.ECONNRESET }

func TestService_LoginFlow(t *testing.T) {
	tests := []struct {
		name          string
		queryRedirect string
		stored        string
		want          string
	}{
		{name: "query redirect wins", queryRedirect: "/teacher/grades", stored: "/teacher/interaction", want: "/teacher/grades"},
		{name: "stored redirect", stored: "/teacher/interaction", want: "/teacher/interaction"},
		{name: "role home", want: "/teacher/materials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t, newFakeBackend())
			if tt.stored != "" {
				store.SetRedirectPath(tt.stored)
			}

			dest, err := svc.LoginFlow(context.Background(), "teacher1", "secret", tt.queryRedirect)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dest)
			assert.Empty(t, store.RedirectPath())
		})
	}

	t.Run("failure keeps the stored redirect", func(t *testing.T) {
		backend := newFakeBackend()
		backend.loginCode = http.StatusUnauthorized
		svc, store := newTestService(t, backend)
		store.SetRedirectPath("/teacher/grades")

		_, err := svc.LoginFlow(context.Background(), "teacher1", "wrong", "")
		require.Error(t, err)
		assert.Equal(t, "/teacher/grades", store.RedirectPath())
	})
}

func TestService_Logout(t *testing.T) {
	t.Run("clears the session", func(t *testing.T) {
		backend := newFakeBackend()
		svc, store, storage := newTestServiceWithStorage(t, backend)
		_, err := svc.Login(context.Background(), "teacher1", "secret")
		require.NoError(t, err)
		assertPersisted(t, storage, session.KeyUser, true)
		assertPersisted(t, storage, session.KeyLoggedIn, true)

		svc.Logout(context.Background())

		assert.False(t, store.IsAuthenticated())
		assert.Nil(t, store.User())
		assertPersisted(t, storage, session.KeyUser, false)
		assertPersisted(t, storage, session.KeyLoggedIn, false)
		assert.Equal(t, 1, backend.count(client.LogoutPath))
	})

	t.Run("backend failure still clears", func(t *testing.T) {
		backend := newFakeBackend()
		backend.logout = http.StatusInternalServerError
		svc, store := newTestService(t, backend)
		store.SetUser(&models.User{ID: 1, Username: "teacher1", Role: "teacher"})

		svc.Logout(context.Background())

		assert.False(t, store.IsAuthenticated())
		assert.False(t, store.IsLoading())
	})
}

func TestService_CheckStatus(t *testing.T) {
	t.Run("already authenticated is a no-op", func(t *testing.T) {
		backend := newFakeBackend()
		svc, store := newTestService(t, backend)
		store.SetUser(&models.User{ID: 1, Username: "teacher1", Role: "teacher"})

		assert.True(t, svc.CheckStatus(context.Background()))
		assert.Zero(t, backend.count(client.StatusPath))
	})

	t.Run("valid session without cached user fetches the profile", func(t *testing.T) {
		backend := newFakeBackend()
		svc, store := newTestService(t, backend)

		assert.True(t, svc.CheckStatus(context.Background()))
		assert.Equal(t, 1, backend.count(client.ProfilePath))

		user := store.User()
		require.NotNil(t, user)
		assert.Equal(t, "T001", user.UserCode)
		assert.True(t, user.Status)
		assert.Equal(t, "2025-03-01T09:30:00Z", user.UpdatedAt)
		assert.True(t, store.IsAuthenticated())
	})

	t.Run("invalid session clears silently", func(t *testing.T) {
		backend := newFakeBackend()
		backend.status = http.StatusUnauthorized
		svc, store := newTestService(t, backend)

		assert.False(t, svc.CheckStatus(context.Background()))
		assert.Nil(t, store.User())
		assert.False(t, store.IsAuthenticated())
		assert.Zero(t, backend.count(client.ProfilePath))
	})

	t.Run("profile failure clears", func(t *testing.T) {
		backend := newFakeBackend()
		backend.profile = `{"message":"no username"}`
		svc, store := newTestService(t, backend)

		assert.False(t, svc.CheckStatus(context.Background()))
		assert.False(t, store.IsAuthenticated())
	})
}

func TestService_FetchCurrentUser(t *testing.T) {
	t.Run("merges into the cached user", func(t *testing.T) {
		svc, store := newTestService(t, newFakeBackend())
		phone := "13800138000"
		store.SetUser(&models.User{
			ID: 3, Username: "teacher1", Role: "teacher", Status: false,
			UpdatedAt: "2025-01-01T00:00:00Z", Phone: &phone,
		})

		user, err := svc.FetchCurrentUser(context.Background())
		require.NoError(t, err)

		assert.Equal(t, int64(3), user.ID, "id kept when the profile omits it")
		assert.False(t, user.Status, "status kept from the cache")
		assert.Equal(t, "2025-01-01T00:00:00Z", user.UpdatedAt)
		assert.Equal(t, "han@example.edu", user.Email)
		require.NotNil(t, user.Phone)
		assert.Equal(t, phone, *user.Phone)
		assert.Equal(t, user, store.User())
	})

	t.Run("failure clears the session", func(t *testing.T) {
		backend := newFakeBackend()
		backend.profile = `not json`
		svc, store := newTestService(t, backend)
		store.SetUser(&models.User{ID: 3, Username: "teacher1", Role: "teacher"})

		_, err := svc.FetchCurrentUser(context.Background())
		require.ErrorIs(t, err, client.ErrInvalidResponse)
		assert.False(t, store.IsAuthenticated())
	})
}

func TestService_RegisterAndChangePassword(t *testing.T) {
	backend := newFakeBackend()
	svc, _ := newTestService(t, backend)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "x"})
	require.ErrorIs(t, err, validation.ErrInvalid)
	assert.Zero(t, backend.count(client.RegisterPath), "invalid input never reaches the backend")

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "new1", UserCode: "S012", Email: "new1@example.edu",
		Password: "secret1", RealName: "Wang Fang", Role: "student",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), user.ID)

	err = svc.ChangePassword(context.Background(), models.PasswordChangeRequest{OldPassword: "a", NewPassword: "secret1", ConfirmPassword: "secret2"})
	require.ErrorIs(t, err, validation.ErrInvalid)

	err = svc.ChangePassword(context.Background(), models.PasswordChangeRequest{OldPassword: "a", NewPassword: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)

	require.NoError(t, svc.Health(context.Background()))
}

type stubBackend struct {
	Backend
	loginResp *models.LoginResponse
	loginErr  error
}

func (s *stubBackend) Login(context.Context, models.LoginRequest) (*models.LoginResponse, error) {
	return s.loginResp, s.loginErr
}

func TestService_LoginWithStub(t *testing.T) {
	store := session.New(session.NewMemoryStorage())

	svc := New(&stubBackend{}, store)
	_, err := svc.Login(context.Background(), "a", "b")
	require.ErrorIs(t, err, client.ErrInvalidResponse)

	svc = New(&stubBackend{loginErr: context.DeadlineExceeded}, store)
	_, err = svc.Login(context.Background(), "a", "b")

	var loginErr *LoginError
	require.True(t, errors.As(err, &loginErr))
	assert.Equal(t, Timeout, loginErr.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
