package client

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/wolfeidau/classdesk/internal/logger"
	"github.com/wolfeidau/classdesk/internal/notify"
)

// DefaultDevPort is the backend port used when the portal is served from a loopback host.
const DefaultDevPort = 5030

// Config holds common client configuration
type Config struct {
	// Origin is the address the portal is served from, the equivalent of the page location.
	Origin   string
	DevPort  int
	Timeout  time.Duration
	Debug    bool
	Retry    RetryPolicy
	StateDir string
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		Origin:  "http://localhost",
		DevPort: DefaultDevPort,
		Timeout: 60 * time.Second,
		Retry:   DefaultRetryPolicy(),
	}
}

// ResolveBaseURL picks the API base address for an origin.
// Loopback origins talk to the local development backend on devPort; anything else is
// assumed to sit behind a reverse proxy on the same origin.
func ResolveBaseURL(origin string, devPort int) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid origin %q: scheme and host are required", origin)
	}

	if isLoopback(u.Hostname()) {
		if devPort == 0 {
			devPort = DefaultDevPort
		}
		return fmt.Sprintf("http://localhost:%d", devPort), nil
	}

	return u.Scheme + "://" + u.Host, nil
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Deps are the collaborators the transport reacts through.
type Deps struct {
	Session   Session
	Navigator Navigator
	Notifier  notify.Notifier
}

// Clients holds the configured HTTP clients and the typed API on top of them.
type Clients struct {
	BaseURL string
	HTTP    *http.Client
	Cached  *http.Client
	Jar     *PersistentJar
	API     *API
}

// NewClients wires the cookie jar, auth transport and retry policy.
// Round trips are logged only when Debug is set.
// When StateDir is set cookies and cached resources persist there.
func NewClients(cfg Config, deps Deps) (*Clients, error) {
	baseURL, err := ResolveBaseURL(cfg.Origin, cfg.DevPort)
	if err != nil {
		return nil, err
	}

	cookiePath := ""
	cacheDir := ""
	if cfg.StateDir != "" {
		cookiePath = filepath.Join(cfg.StateDir, CookieFileName)
		cacheDir = filepath.Join(cfg.StateDir, "cache")
	}

	jar, err := NewPersistentJar(cookiePath, baseURL)
	if err != nil {
		return nil, err
	}

	var base http.RoundTripper = http.DefaultTransport
	if cfg.Debug {
		base = logger.NewTransport(base)
	}
	retrying := cfg.Retry.Transport(base)
	auth := NewAuthTransport(retrying, deps.Session, deps.Navigator, deps.Notifier)

	httpClient := &http.Client{
		Transport: auth,
		Jar:       jar,
		Timeout:   cfg.Timeout,
	}

	cached := NewCachingHTTPClient(cacheDir, auth)
	cached.Jar = jar
	cached.Timeout = cfg.Timeout

	return &Clients{
		BaseURL: baseURL,
		HTTP:    httpClient,
		Cached:  cached,
		Jar:     jar,
		API:     NewAPI(baseURL, httpClient, cached),
	}, nil
}
