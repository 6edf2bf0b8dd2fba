package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/classdesk/internal/notify"
	"github.com/wolfeidau/classdesk/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CodeNotLoggedIn is the application-level code some endpoints return in a 200 body
// when the caller has no session.
const CodeNotLoggedIn = 40100

const (
	loginPagePath = "/login"
	redirectParam = "redirect"

	// maxInspectBytes bounds how much of a JSON body is buffered to look for the code.
	maxInspectBytes = 1 << 20
)

// Session is the part of the session store the transport mutates on authentication failure.
type Session interface {
	ClearUser()
	SetRedirectPath(path string)
}

// Navigator moves the application to another in-app location.
type Navigator interface {
	CurrentPath() string
	Navigate(ctx context.Context, raw string) error
}

// AuthTransport attaches request metadata and reacts globally to authentication failures:
// a 401 clears the session and sends the user to the login page, remembering where they were.
type AuthTransport struct {
	next      http.RoundTripper
	session   Session
	navigator Navigator
	notifier  notify.Notifier
}

func NewAuthTransport(next http.RoundTripper, session Session, navigator Navigator, notifier notify.Notifier) *AuthTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	return &AuthTransport{next: next, session: session, navigator: navigator, notifier: notifier}
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("X-Request-ID") == "" {
		if id, err := uuid.NewV7(); err == nil {
			req.Header.Set("X-Request-ID", id.String())
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.handleUnauthorized(req)
		return resp, nil
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		// downloads and streams are handed back untouched
		return resp, nil
	}

	code, err := peekCode(resp)
	if err != nil {
		log.Debug().Err(err).Str("path", req.URL.Path).Msg("failed to inspect response body")
		return resp, nil
	}

	if code == CodeNotLoggedIn {
		t.handleNotLoggedIn(req)
	}

	return resp, nil
}

func (t *AuthTransport) handleUnauthorized(req *http.Request) {
	log.Debug().Str("path", req.URL.Path).Msg("received 401, clearing session")
	telemetry.GetMetrics().SessionExpiredTotal.Add(req.Context(), 1,
		metric.WithAttributes(attribute.String("reason", "unauthorized")))

	if t.session != nil {
		t.session.ClearUser()
	}

	// a rejected login is reported by the auth service, not redirected
	if req.URL.Path == LoginPath || t.onLoginPage() {
		return
	}

	current := t.currentPath()
	if t.session != nil {
		t.session.SetRedirectPath(current)
	}

	t.notifier.Notify(notify.LevelWarning, "Your session has expired, please log in again")
	t.navigateToLogin(req.Context(), current)
}

func (t *AuthTransport) handleNotLoggedIn(req *http.Request) {
	if strings.Contains(req.URL.Path, ProfilePath) || t.onLoginPage() {
		return
	}

	telemetry.GetMetrics().SessionExpiredTotal.Add(req.Context(), 1,
		metric.WithAttributes(attribute.String("reason", "not_logged_in")))

	t.notifier.Notify(notify.LevelWarning, "Please log in first")
	t.navigateToLogin(req.Context(), t.currentPath())
}

func (t *AuthTransport) navigateToLogin(ctx context.Context, redirect string) {
	if t.navigator == nil {
		return
	}

	target := loginPagePath
	if redirect != "" {
		target += "?" + url.Values{redirectParam: []string{redirect}}.Encode()
	}

	if err := t.navigator.Navigate(context.WithoutCancel(ctx), target); err != nil {
		log.Warn().Err(err).Str("target", target).Msg("failed to navigate to login")
	}
}

func (t *AuthTransport) currentPath() string {
	if t.navigator == nil {
		return ""
	}
	return t.navigator.CurrentPath()
}

func (t *AuthTransport) onLoginPage() bool {
	return strings.Contains(t.currentPath(), loginPagePath)
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// peekCode reads the application code from a JSON body and restores the body for the caller.
func peekCode(resp *http.Response) (int, error) {
	if resp.Body == nil || resp.Body == http.NoBody {
		return 0, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInspectBytes+1))
	if err != nil {
		// the caller must still see the failure after the bytes that did arrive
		resp.Body.Close()
		resp.Body = io.NopCloser(io.MultiReader(bytes.NewReader(data), errReader{err}))
		return 0, err
	}

	if len(data) > maxInspectBytes {
		// too large to inspect, stitch the consumed prefix back onto the stream
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(data), resp.Body), resp.Body}
		return 0, nil
	}

	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))

	var envelope struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		// not an object with a numeric code, nothing to react to
		return 0, nil
	}

	return envelope.Code, nil
}

// errReader fails every read with err.
type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
