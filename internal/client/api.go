package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/classdesk/internal/models"
)

// Backend endpoints.
const (
	LoginPath          = "/api/v1/auth/login"
	LogoutPath         = "/api/v1/auth/logout"
	StatusPath         = "/api/v1/auth/status"
	ProfilePath        = "/api/v1/auth/get_loginuser"
	RegisterPath       = "/api/v1/auth/register"
	ChangePasswordPath = "/api/v1/auth/change-password"
	HealthPath         = "/api/v1/auth/health"
)

// ErrInvalidResponse is returned when a 2xx payload does not have the expected shape.
var ErrInvalidResponse = errors.New("invalid response")

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       int
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// API is the typed client for the backend's auth endpoints, plus pass-through access to
// domain resources.
type API struct {
	baseURL   string
	http      *http.Client
	resources *http.Client
}

// NewAPI creates an API client. resources may be nil, in which case httpClient is used for
// domain resources too.
func NewAPI(baseURL string, httpClient, resources *http.Client) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if resources == nil {
		resources = httpClient
	}
	return &API{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      httpClient,
		resources: resources,
	}
}

// Login posts credentials. The response must carry a user.
func (a *API) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := a.do(ctx, a.http, http.MethodPost, LoginPath, req, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil || resp.User.Username == "" {
		return nil, fmt.Errorf("%w: login response has no user", ErrInvalidResponse)
	}
	return &resp, nil
}

func (a *API) Logout(ctx context.Context) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	if err := a.do(ctx, a.http, http.MethodPost, LogoutPath, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status succeeds only while the backend session is valid.
func (a *API) Status(ctx context.Context) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	if err := a.do(ctx, a.http, http.MethodGet, StatusPath, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LoginUser fetches the profile of the logged in user.
func (a *API) LoginUser(ctx context.Context) (*models.Profile, error) {
	var resp models.Profile
	if err := a.do(ctx, a.http, http.MethodGet, ProfilePath, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Username == "" {
		return nil, fmt.Errorf("%w: profile has no username", ErrInvalidResponse)
	}
	return &resp, nil
}

func (a *API) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	var resp models.User
	if err := a.do(ctx, a.http, http.MethodPost, RegisterPath, req, &resp); err != nil {
		return nil, err
	}
	if resp.Username == "" {
		return nil, fmt.Errorf("%w: registration response has no user", ErrInvalidResponse)
	}
	return &resp, nil
}

func (a *API) ChangePassword(ctx context.Context, req models.PasswordChangeRequest) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	if err := a.do(ctx, a.http, http.MethodPost, ChangePasswordPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *API) Health(ctx context.Context) error {
	return a.do(ctx, a.http, http.MethodGet, HealthPath, nil, nil)
}

// Resource fetches an opaque domain resource (materials, grades, courses...) through the
// caching client and returns its normalized JSON.
func (a *API) Resource(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var raw json.RawMessage
	if err := a.do(ctx, a.resources, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (a *API) do(ctx context.Context, c *http.Client, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if IsCached(resp) {
		log.Ctx(ctx).Debug().Str("path", path).Msg("served from cache")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if raw, ok := out.(*json.RawMessage); ok {
		normalized, err := models.NormalizeKeys(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		*raw = normalized
		return nil
	}

	if err := models.Decode(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func newHTTPError(status int, body []byte) *HTTPError {
	httpErr := &HTTPError{StatusCode: status}

	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Code    int    `json:"code"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		httpErr.Code = envelope.Code
		switch {
		case envelope.Message != "":
			httpErr.Message = envelope.Message
		case envelope.Error != "":
			httpErr.Message = envelope.Error
		case envelope.Detail != "":
			httpErr.Message = envelope.Detail
		}
	}

	return httpErr
}
