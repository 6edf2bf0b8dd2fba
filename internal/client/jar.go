package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

// CookieFileName is the file PersistentJar saves backend cookies in.
const CookieFileName = "cookies.json"

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PersistentJar is a cookie jar that mirrors the backend's cookies to disk so the
// backend session outlives the process. Only cookies visible to the base URL are saved.
type PersistentJar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	path    string
	baseURL *url.URL
}

// NewPersistentJar loads cookies from path. An empty path keeps cookies in memory only.
func NewPersistentJar(path, baseURL string) (*PersistentJar, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	jar, err := newJar()
	if err != nil {
		return nil, err
	}

	p := &PersistentJar{jar: jar, path: path, baseURL: u}
	if err := p.load(); err != nil {
		// a damaged cookie file only costs a fresh login
		log.Warn().Err(err).Str("path", path).Msg("ignoring unreadable cookie file")
	}

	return p, nil
}

func newJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

func (p *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.jar.SetCookies(u, cookies)
	if err := p.save(); err != nil {
		log.Warn().Err(err).Str("path", p.path).Msg("failed to persist cookies")
	}
}

func (p *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jar.Cookies(u)
}

// Clear drops every cookie and removes the cookie file.
func (p *PersistentJar) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	jar, err := newJar()
	if err != nil {
		return err
	}
	p.jar = jar

	if p.path == "" {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cookie file: %w", err)
	}
	return nil
}

func (p *PersistentJar) load() error {
	if p.path == "" {
		return nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cookies: %w", err)
	}

	var saved []savedCookie
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("failed to parse cookies: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	p.jar.SetCookies(p.baseURL, cookies)

	log.Debug().Int("count", len(cookies)).Msg("cookies restored")

	return nil
}

// save writes the cookie file atomically.
func (p *PersistentJar) save() error {
	if p.path == "" {
		return nil
	}

	current := p.jar.Cookies(p.baseURL)
	saved := make([]savedCookie, 0, len(current))
	for _, c := range current {
		saved = append(saved, savedCookie{Name: c.Name, Value: c.Value})
	}

	data, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	tempPath := p.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookies: %w", err)
	}
	if err := os.Rename(tempPath, p.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save cookies: %w", err)
	}

	return nil
}
