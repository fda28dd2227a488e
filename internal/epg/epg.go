// Package epg reshapes the provider's short program guide into a stable form.
// The upstream payload is inconsistent across deployments: the transport
// charset header is sometimes wrong, the listing array appears under several
// field names, and titles/descriptions arrive base64-encoded on some panels
// and plain on others.
package epg

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// Listing is one normalized guide entry. Start and End are raw upstream epoch
// seconds; display formatting is the caller's concern.
type Listing struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
}

// listingFields are the candidate names for the listing array, tried in
// order; the first present array wins. New provider shapes are a one-line
// addition here.
var listingFields = []string{"epg_listings", "listings", "epg"}

// base64Pattern matches the base64 alphabet with optional padding. It is a
// heuristic: genuine plain text can satisfy it, which is why decode results
// are only kept when they are valid UTF-8 and otherwise fall back to the raw
// string.
var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)

type rawListing struct {
	Title       string    `json:"title"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Start       flexEpoch `json:"start_timestamp"`
	End         flexEpoch `json:"stop_timestamp"`
}

// Normalize parses a short-EPG payload and returns up to limit listings.
// The payload is forced to valid UTF-8 first; the upstream is known to
// mis-declare its charset and emit stray bytes.
func Normalize(raw []byte, limit int) ([]Listing, error) {
	raw = bytes.ToValidUTF8(raw, []byte("�"))

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("guide payload: %w", err)
	}
	var items []rawListing
	for _, field := range listingFields {
		v, ok := envelope[field]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, &items); err != nil {
			continue // present but not an array; try the next candidate
		}
		break
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]Listing, 0, len(items))
	for _, it := range items {
		title := it.Title
		if title == "" {
			title = it.Name
		}
		out = append(out, Listing{
			Title:       DecodeText(title),
			Description: DecodeText(it.Description),
			Start:       int64(it.Start),
			End:         int64(it.End),
		})
	}
	return out, nil
}

// DecodeText normalizes a guide string: when it looks base64-encoded it is
// decoded and the result kept if it is valid UTF-8 text; in every other case
// the input is returned unchanged. Never fails.
func DecodeText(s string) string {
	if s == "" || len(s)%4 != 0 || !base64Pattern.MatchString(s) {
		return s
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	if !utf8.Valid(decoded) {
		return s
	}
	return string(decoded)
}

// flexEpoch accepts epoch seconds as a JSON number or a numeric string
// (providers disagree on which).
type flexEpoch int64

func (f *flexEpoch) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*f = 0
		return nil // unparseable timestamps degrade to zero, never an error
	}
	*f = flexEpoch(n)
	return nil
}
