package safeurl

import (
	"strings"
	"testing"
)

func TestIsHTTPOrHTTPS(t *testing.T) {
	tests := []struct {
		url   string
		allow bool
	}{
		{"http://example.com/", true},
		{"https://example.com/path", true},
		{"HTTP://x", true},
		{"HTTPS://x", true},
		{"file:///etc/passwd", false},
		{"ftp://example.com", false},
		{"", false},
		{"not-a-url", false},
		{"javascript:alert(1)", false},
	}
	for _, tt := range tests {
		got := IsHTTPOrHTTPS(tt.url)
		if got != tt.allow {
			t.Errorf("IsHTTPOrHTTPS(%q) = %v, want %v", tt.url, got, tt.allow)
		}
	}
}

func TestRedact_queryCredentials(t *testing.T) {
	got := Redact("http://host/player_api.php?username=u&password=hunter2&action=get_live_streams")
	if strings.Contains(got, "hunter2") {
		t.Errorf("password leaked: %s", got)
	}
	if !strings.Contains(got, "username=u") {
		t.Errorf("non-secret params should survive: %s", got)
	}
}

func TestRedact_relayKey(t *testing.T) {
	got := Redact("http://host/api/relay?target=http%3A%2F%2Fx%2Fseg1.ts&key=supersecret")
	if strings.Contains(got, "supersecret") {
		t.Errorf("key leaked: %s", got)
	}
}

func TestRedact_pathCredentials(t *testing.T) {
	got := Redact("http://host/live/myuser/mypass/123.m3u8")
	if strings.Contains(got, "myuser") || strings.Contains(got, "mypass") {
		t.Errorf("path credentials leaked: %s", got)
	}
	if !strings.HasSuffix(got, "/123.m3u8") {
		t.Errorf("stream id should survive: %s", got)
	}
}

func TestRedact_unparseable(t *testing.T) {
	in := "http://host/%zz"
	if got := Redact(in); got != in {
		t.Errorf("unparseable input should pass through, got %s", got)
	}
}
