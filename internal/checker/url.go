package checker

import (
	"net/url"
	"strings"
)

// NormalizeURL standardizes a raw address before any network call. Input
// without a scheme gets https; input like "example.com/page" parses with an
// empty host, so the path component is promoted to the host. The path
// defaults to "/". Returns "" for input that cannot become a usable URL.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Host == "" {
		u.Host = u.Path
		u.Path = ""
	}
	if u.Host == "" {
		return ""
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// IsRedirectStatus reports whether the status code is one of the redirect
// codes the pipeline treats as a first-hop redirect.
func IsRedirectStatus(code int) bool {
	switch code {
	case 301, 302, 303, 307, 308:
		return true
	default:
		return false
	}
}
