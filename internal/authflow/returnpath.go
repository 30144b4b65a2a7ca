package authflow

import (
	"net/url"
	"strings"
)

// SanitizeReturnPath validates a return-path token before it is attached to
// the login URL. Only a same-origin relative path (optionally with query and
// fragment) is accepted; anything that would resolve to a different origin
// is replaced with the application root.
func SanitizeReturnPath(raw string) string {
	if raw == "" {
		return "/"
	}

	// Protocol-relative URLs ("//evil.example") and backslash tricks both
	// resolve off-origin in browsers.
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return "/"
	}
	if strings.ContainsAny(raw, "\\") {
		return "/"
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" || parsed.User != nil {
		return "/"
	}

	sanitized := parsed.String()
	if !strings.HasPrefix(sanitized, "/") {
		return "/"
	}
	return sanitized
}
