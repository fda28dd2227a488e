// Package playlist rewrites provider HLS playlists so every media URI points
// back at this service's relay endpoint. Directives pass through verbatim;
// only media/segment/key reference lines are touched.
package playlist

import (
	"net/url"
	"strings"
)

// Rewriter turns upstream media references into same-origin relay URLs.
type Rewriter struct {
	// RelayPath is the local relay endpoint, e.g. "/api/relay".
	RelayPath string
	// Key is the shared access key carried on each relay URL; HLS players
	// cannot set custom headers, so it travels as a query parameter.
	Key string
}

// Rewrite processes playlist text fetched from base. Each non-empty,
// non-directive line is resolved to an absolute URL against base (the
// playlist's own URL, which handles both absolute and relative references)
// and replaced with a relay URL. Line order and count are preserved, as is
// the original line separator.
func (rw *Rewriter) Rewrite(src string, base *url.URL) string {
	sep := "\n"
	if strings.Contains(src, "\r\n") {
		sep = "\r\n"
	}
	lines := strings.Split(src, sep)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		ref, err := url.Parse(trimmed)
		if err != nil {
			continue // leave unparseable lines alone rather than emit a broken relay URL
		}
		lines[i] = rw.relayURL(base.ResolveReference(ref).String())
	}
	return strings.Join(lines, sep)
}

func (rw *Rewriter) relayURL(target string) string {
	return rw.RelayPath + "?target=" + url.QueryEscape(target) + "&key=" + url.QueryEscape(rw.Key)
}
