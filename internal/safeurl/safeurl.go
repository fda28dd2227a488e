package safeurl

import (
	"net/url"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Used to reject file://, ftp://, and other schemes that could lead to SSRF or local file access.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}

// secretQueryParams are query parameter names whose values must never reach logs.
var secretQueryParams = []string{"password", "key", "token"}

// Redact returns raw with provider credentials masked: secret query parameter
// values become "xxx" and Xtream-style /live/<user>/<pass>/ path segments are
// masked. Unparseable input is returned unchanged.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.RawQuery != "" {
		q := u.Query()
		changed := false
		for _, name := range secretQueryParams {
			if q.Has(name) {
				q.Set(name, "xxx")
				changed = true
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}
	parts := strings.Split(u.Path, "/")
	for i, p := range parts {
		if (p == "live" || p == "vod" || p == "series") && i+2 < len(parts) {
			parts[i+1] = "xxx"
			parts[i+2] = "xxx"
			u.Path = strings.Join(parts, "/")
			break
		}
	}
	return u.String()
}
