package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// HeaderSet holds static HTTP headers and cookies applied to every request of
// a run. Session management beyond this is deliberately not handled.
type HeaderSet struct {
	Headers map[string]string `yaml:"headers,omitempty"`
	Cookies map[string]string `yaml:"cookies,omitempty"`
}

// CookieHeader renders the cookie set as a single Cookie header value, in
// sorted name order so the output is stable.
func (hs *HeaderSet) CookieHeader() string {
	if len(hs.Cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(hs.Cookies))
	for name := range hs.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(hs.Cookies[name])
	}
	return b.String()
}

// LoadHeaders reads a headers/cookies YAML file. An empty path yields an
// empty set.
func LoadHeaders(path string) (*HeaderSet, error) {
	hs := &HeaderSet{
		Headers: map[string]string{},
		Cookies: map[string]string{},
	}
	if path == "" {
		return hs, nil
	}

	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("reading header file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, hs); err != nil {
		return nil, fmt.Errorf("%w: parsing header file %s: %v", ErrInvalid, path, err)
	}
	if hs.Headers == nil {
		hs.Headers = map[string]string{}
	}
	if hs.Cookies == nil {
		hs.Cookies = map[string]string{}
	}
	return hs, nil
}
