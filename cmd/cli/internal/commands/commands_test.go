package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/classdesk/internal/client"
	"github.com/wolfeidau/classdesk/internal/validation"
)

// portal is a fake backend with a single teacher account and cookie sessions.
type portal struct {
	mu       sync.Mutex
	sessions map[string]bool
	password string
}

func newPortal(t *testing.T) (*portal, *httptest.Server) {
	t.Helper()
	p := &portal{sessions: map[string]bool{}, password: "secret1"}
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	return p, srv
}

func (p *portal) currentPassword() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.password
}

func (p *portal) loggedIn(r *http.Request) bool {
	c, err := r.Cookie("sessionid")
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[c.Value]
}

func (p *portal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case client.LoginPath:
		var req struct {
			LoginIdentifier string `json:"loginIdentifier"`
			Password        string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.LoginIdentifier != "teacher1" || req.Password != p.currentPassword() {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"invalid credentials"}`))
			return
		}
		p.mu.Lock()
		p.sessions["s1"] = true
		p.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "s1", Path: "/"})
		w.Write([]byte(`{"message":"ok","user":{"id":3,"username":"teacher1","real_name":"Han Mei","role":"teacher","status":true}}`))
		return
	case client.HealthPath:
		w.Write([]byte(`{"status":"ok"}`))
		return
	case client.RegisterPath:
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":12,"username":"new1","role":"student"}`))
		return
	}

	if !p.loggedIn(r) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"not logged in"}`))
		return
	}

	switch r.URL.Path {
	case client.LogoutPath:
		p.mu.Lock()
		delete(p.sessions, "s1")
		p.mu.Unlock()
		w.Write([]byte(`{"message":"bye"}`))
	case client.StatusPath:
		w.Write([]byte(`{"message":"ok"}`))
	case client.ProfilePath:
		w.Write([]byte(`{"id":3,"username":"teacher1","real_name":"Han Mei","role":"teacher","email":"han@example.edu","user_code":"T001","created_at":"2024-09-01T08:00:00"}`))
	case client.ChangePasswordPath:
		var req struct {
			OldPassword string `json:"oldPassword"`
			NewPassword string `json:"newPassword"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		p.mu.Lock()
		defer p.mu.Unlock()
		if req.OldPassword != p.password {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"current password is wrong"}`))
			return
		}
		p.password = req.NewPassword
		w.Write([]byte(`{"message":"updated"}`))
	case "/api/v1/materials":
		w.Write([]byte(`{"items":[{"material_id":1,"title":"Week 1"}],"course_id":"` + r.URL.Query().Get("course_id") + `"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func testGlobals(t *testing.T, srv *httptest.Server) (*Globals, *bytes.Buffer) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	var out bytes.Buffer
	return &Globals{
		StateDir: t.TempDir(),
		Origin:   "http://127.0.0.1",
		DevPort:  port,
		Out:      &out,
		In:       strings.NewReader(""),
	}, &out
}

func login(t *testing.T, globals *Globals) {
	t.Helper()
	cmd := &LoginCmd{Identifier: "teacher1", Password: "secret1"}
	require.NoError(t, cmd.Run(context.Background(), globals))
}

func TestLoginCmd(t *testing.T) {
	_, srv := newPortal(t)

	t.Run("lands on the role home", func(t *testing.T) {
		globals, out := testGlobals(t, srv)
		login(t, globals)

		assert.Contains(t, out.String(), "success: Login successful")
		assert.Contains(t, out.String(), "Logged in as Han Mei (Teacher)")
		assert.Contains(t, out.String(), "Page: Material center (/teacher/materials)")

		_, err := os.Stat(filepath.Join(globals.StateDir, "state.json"))
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(globals.StateDir, client.CookieFileName))
		require.NoError(t, err)
	})

	t.Run("honours the redirect flag", func(t *testing.T) {
		globals, out := testGlobals(t, srv)
		cmd := &LoginCmd{Identifier: "teacher1", Password: "secret1", Redirect: "/teacher/material/42"}
		require.NoError(t, cmd.Run(context.Background(), globals))

		assert.Contains(t, out.String(), "Page: Material detail (/teacher/material/42)")
		assert.Contains(t, out.String(), "id = 42")
	})

	t.Run("reads the password from stdin", func(t *testing.T) {
		globals, out := testGlobals(t, srv)
		globals.In = strings.NewReader("secret1\n")

		cmd := &LoginCmd{Identifier: "teacher1", PasswordStdin: true}
		require.NoError(t, cmd.Run(context.Background(), globals))
		assert.Contains(t, out.String(), "Logged in as")
	})

	t.Run("wrong password", func(t *testing.T) {
		globals, _ := testGlobals(t, srv)
		cmd := &LoginCmd{Identifier: "teacher1", Password: "nope"}

		err := cmd.Run(context.Background(), globals)
		require.EqualError(t, err, "Incorrect username or password")
	})
}

func TestSessionCommands(t *testing.T) {
	_, srv := newPortal(t)
	globals, out := testGlobals(t, srv)
	ctx := context.Background()

	require.NoError(t, (&StatusCmd{}).Run(ctx, globals))
	assert.Contains(t, out.String(), "Not logged in.")

	login(t, globals)
	out.Reset()

	require.NoError(t, (&StatusCmd{}).Run(ctx, globals))
	assert.Contains(t, out.String(), "Logged in as Han Mei (Teacher)")
	assert.Contains(t, out.String(), "Home: /teacher/materials")

	out.Reset()
	require.NoError(t, (&WhoamiCmd{}).Run(ctx, globals))
	assert.Contains(t, out.String(), "han@example.edu")
	assert.Contains(t, out.String(), "T001")
	assert.Contains(t, out.String(), "(default, H)")

	out.Reset()
	require.NoError(t, (&OpenCmd{Path: "/admin/dashboard"}).Run(ctx, globals))
	assert.Contains(t, out.String(), "warning: You do not have permission to access this page")
	assert.Contains(t, out.String(), "Redirected (redirect-denied) to /teacher/materials")

	out.Reset()
	require.NoError(t, (&OpenCmd{Path: "/login"}).Run(ctx, globals))
	assert.Contains(t, out.String(), "Page: Material center (/teacher/materials)")

	out.Reset()
	require.NoError(t, (&GetCmd{Path: "/api/v1/materials", Query: []string{"course_id=7"}}).Run(ctx, globals))
	assert.Contains(t, out.String(), `"materialId": 1`)
	assert.Contains(t, out.String(), `"courseId": "7"`)

	require.Error(t, (&GetCmd{Path: "/api/v1/materials", Query: []string{"broken"}}).Run(ctx, globals))

	out.Reset()
	require.NoError(t, (&LogoutCmd{}).Run(ctx, globals))
	assert.Contains(t, out.String(), "success: Logged out")

	out.Reset()
	require.NoError(t, (&StatusCmd{}).Run(ctx, globals))
	assert.Contains(t, out.String(), "Not logged in.")

	require.ErrorIs(t, (&WhoamiCmd{}).Run(ctx, globals), errNotLoggedIn)
}

func TestOpenCmd_Unauthenticated(t *testing.T) {
	_, srv := newPortal(t)
	globals, out := testGlobals(t, srv)

	require.NoError(t, (&OpenCmd{Path: "/student/grades?term=2"}).Run(context.Background(), globals))

	assert.Contains(t, out.String(), "Redirected (redirect-to-login) to /login?redirect=%2Fstudent%2Fgrades%3Fterm%3D2")
	assert.Contains(t, out.String(), "Page: Login")

	err := (&OpenCmd{Path: "/nowhere"}).Run(context.Background(), globals)
	require.Error(t, err)
}

func TestGetCmd_ExpiredSession(t *testing.T) {
	_, srv := newPortal(t)
	globals, out := testGlobals(t, srv)

	err := (&GetCmd{Path: "/api/v1/materials"}).Run(context.Background(), globals)

	var httpErr *client.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Contains(t, out.String(), "warning: Your session has expired, please log in again")
}

func TestPasswordCmd(t *testing.T) {
	portal, srv := newPortal(t)
	globals, out := testGlobals(t, srv)
	login(t, globals)

	t.Run("mismatched confirmation", func(t *testing.T) {
		globals.In = strings.NewReader("secret1\nNewSecret9\nNewSecret8\n")
		globals.lines = nil

		err := (&PasswordCmd{}).Run(context.Background(), globals)
		require.ErrorIs(t, err, validation.ErrInvalid)
		assert.Equal(t, "secret1", portal.currentPassword())
	})

	t.Run("changes the password", func(t *testing.T) {
		out.Reset()
		globals.In = strings.NewReader("secret1\nNewSecret9\nNewSecret9\n")
		globals.lines = nil

		require.NoError(t, (&PasswordCmd{}).Run(context.Background(), globals))
		assert.Contains(t, out.String(), "Strength: fair (50%)")
		assert.Contains(t, out.String(), "Password changed.")
		assert.Equal(t, "NewSecret9", portal.currentPassword())
	})
}

func TestRegisterCmd(t *testing.T) {
	_, srv := newPortal(t)
	globals, out := testGlobals(t, srv)

	cmd := &RegisterCmd{
		Username: "new1", UserCode: "S012", Email: "new1@example.edu",
		RealName: "Wang Fang", Role: "student", Password: "secret1",
	}
	require.NoError(t, cmd.Run(context.Background(), globals))
	assert.Contains(t, out.String(), "Registered new1 (id 12)")

	cmd.Email = "not-an-email"
	err := cmd.Run(context.Background(), globals)
	require.ErrorIs(t, err, validation.ErrInvalid)
	assert.Contains(t, err.Error(), "email must be a valid email address")
}

func TestHealthCmd(t *testing.T) {
	_, srv := newPortal(t)
	globals, out := testGlobals(t, srv)

	require.NoError(t, (&HealthCmd{}).Run(context.Background(), globals))
	assert.Contains(t, out.String(), "is healthy")
}

func TestValidateCmds(t *testing.T) {
	var out bytes.Buffer
	globals := &Globals{Out: &out}

	require.NoError(t, (&ValidateEmailCmd{Value: "a@example.edu"}).Run(globals))
	require.ErrorIs(t, (&ValidateEmailCmd{Value: "nope"}).Run(globals), validation.ErrInvalid)

	require.NoError(t, (&ValidatePhoneCmd{}).Run(globals))
	require.ErrorIs(t, (&ValidatePhoneCmd{Value: "123"}).Run(globals), validation.ErrInvalid)

	globals.In = strings.NewReader("Abcdef12\nAbcdef12\n")
	require.NoError(t, (&ValidatePasswordCmd{Confirm: true}).Run(context.Background(), globals))
	assert.Contains(t, out.String(), "Strength: fair (50%, normal)")

	globals.In = strings.NewReader("abc\n")
	globals.lines = nil
	require.ErrorIs(t, (&ValidatePasswordCmd{}).Run(context.Background(), globals), validation.ErrInvalid)

	dir := t.TempDir()
	png := filepath.Join(dir, "me.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0600))

	out.Reset()
	require.NoError(t, (&ValidateAvatarCmd{Path: png, MaxSize: validation.DefaultMaxAvatarSize}).Run(globals))
	assert.Contains(t, out.String(), "me.png: image/png")

	require.ErrorIs(t, (&ValidateAvatarCmd{Path: png, MaxSize: 4}).Run(globals), validation.ErrInvalid)
}

func TestReadSecret_Terminal(t *testing.T) {
	origRead, origTerm := readPasswordFunc, isTerminalFunc
	t.Cleanup(func() { readPasswordFunc, isTerminalFunc = origRead, origTerm })

	readPasswordFunc = func(int) ([]byte, error) { return []byte("typed"), nil }
	isTerminalFunc = func(int) bool { return true }

	var out bytes.Buffer
	globals := &Globals{Out: &out, In: os.Stdin}

	pwd, err := readSecret(globals, "Password: ")
	require.NoError(t, err)
	assert.Equal(t, "typed", pwd)
	assert.Equal(t, "Password: \n", out.String())
}

func TestConfigCmds(t *testing.T) {
	var out bytes.Buffer
	globals := &Globals{StateDir: t.TempDir(), Out: &out}

	require.NoError(t, (&ConfigSetCmd{Origin: "https://portal.example.edu", Retries: 1}).Run(context.Background(), globals))
	assert.Contains(t, out.String(), "Saved")

	out.Reset()
	require.NoError(t, (&ConfigShowCmd{}).Run(context.Background(), globals))
	assert.Contains(t, out.String(), "# api base url: https://portal.example.edu")
	assert.Contains(t, out.String(), "origin: https://portal.example.edu")
	assert.Contains(t, out.String(), "max_attempts: 1")

	require.Error(t, (&ConfigSetCmd{Origin: "portal"}).Run(context.Background(), globals))
}
