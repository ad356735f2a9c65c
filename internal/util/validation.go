package util

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL checks that rawURL is an absolute http or https URL with a
// host. Credentials embedded in the URL are rejected so they never reach
// logs.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url is empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url has no host")
	}
	if u.User != nil {
		return errors.New("url must not embed credentials")
	}
	return nil
}

// ValidateHeaderName checks that name is an RFC 7230 token.
func ValidateHeaderName(name string) error {
	if name == "" {
		return errors.New("header name is empty")
	}
	if i := strings.IndexFunc(name, func(r rune) bool { return !isTokenChar(r) }); i >= 0 {
		return fmt.Errorf("invalid character %q in header name %q", name[i], name)
	}
	return nil
}

func isTokenChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("!#$%&'*+-.^_`|~", r)
}
