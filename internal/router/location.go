package router

import (
	"fmt"
	"net/url"
	"strings"
)

// Location is an in-app address: a path plus query parameters.
type Location struct {
	Path  string
	Query url.Values
}

// ParseLocation parses "/path?query". Paths are always rooted.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid location %q: %w", raw, err)
	}
	if u.IsAbs() || u.Host != "" {
		return Location{}, fmt.Errorf("invalid location %q: must be an in-app path", raw)
	}

	path := u.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return Location{Path: path, Query: u.Query()}, nil
}

// MustParseLocation is ParseLocation for literals known to be valid.
func MustParseLocation(raw string) Location {
	loc, err := ParseLocation(raw)
	if err != nil {
		panic(err)
	}
	return loc
}

// FullPath returns the path with its encoded query, the form stored as a redirect target.
func (l Location) FullPath() string {
	if len(l.Query) == 0 {
		return l.Path
	}
	return l.Path + "?" + l.Query.Encode()
}

func (l Location) String() string {
	return l.FullPath()
}

// QueryValue returns the first value of a query parameter.
func (l Location) QueryValue(key string) string {
	if l.Query == nil {
		return ""
	}
	return l.Query.Get(key)
}

// LoginLocation builds the login page location carrying the path to resume.
func LoginLocation(redirect string) Location {
	loc := Location{Path: LoginPath}
	if redirect != "" {
		loc.Query = url.Values{RedirectParam: []string{redirect}}
	}
	return loc
}
