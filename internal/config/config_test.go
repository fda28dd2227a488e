package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	t.Setenv("STREAMFRONT_PROVIDER_URL", "http://prov:8080/")
	t.Setenv("STREAMFRONT_PROVIDER_USER", "u")
	t.Setenv("STREAMFRONT_PROVIDER_PASS", "p")

	c := Load()
	if c.ProviderBaseURL != "http://prov:8080" {
		t.Errorf("trailing slash should be stripped, got %q", c.ProviderBaseURL)
	}
	if c.Addr != ":3000" {
		t.Errorf("default addr: %q", c.Addr)
	}
	if c.MetadataTTL != 5*time.Minute {
		t.Errorf("default metadata ttl: %v", c.MetadataTTL)
	}
	if c.GuideTTL != 60*time.Second {
		t.Errorf("default guide ttl: %v", c.GuideTTL)
	}
	if c.GuideLimit != 5 {
		t.Errorf("default guide limit: %d", c.GuideLimit)
	}
	if !c.TrustSameInstance {
		t.Error("same-instance trust should default on")
	}
	if c.UpstreamTimeout <= 0 {
		t.Error("upstream timeout must be bounded")
	}
}

func TestLoad_overrides(t *testing.T) {
	t.Setenv("STREAMFRONT_PROVIDER_URL", "http://prov")
	t.Setenv("STREAMFRONT_METADATA_TTL", "90s")
	t.Setenv("STREAMFRONT_GUIDE_LIMIT", "8")
	t.Setenv("STREAMFRONT_TRUST_SAME_INSTANCE", "false")

	c := Load()
	if c.MetadataTTL != 90*time.Second {
		t.Errorf("metadata ttl override: %v", c.MetadataTTL)
	}
	if c.GuideLimit != 8 {
		t.Errorf("guide limit override: %d", c.GuideLimit)
	}
	if c.TrustSameInstance {
		t.Error("trust override should disable")
	}
}

func TestLoad_badValuesFallBack(t *testing.T) {
	t.Setenv("STREAMFRONT_GUIDE_LIMIT", "banana")
	t.Setenv("STREAMFRONT_METADATA_TTL", "soon")
	c := Load()
	if c.GuideLimit != 5 {
		t.Errorf("bad int should fall back to default, got %d", c.GuideLimit)
	}
	if c.MetadataTTL != 5*time.Minute {
		t.Errorf("bad duration should fall back to default, got %v", c.MetadataTTL)
	}
}

func TestValidate(t *testing.T) {
	c := &Config{ProviderBaseURL: "http://prov", ProviderUser: "u", ProviderPass: "p"}
	if err := c.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if err := (&Config{ProviderUser: "u", ProviderPass: "p"}).Validate(); err == nil {
		t.Error("missing provider URL should fail")
	}
	if err := (&Config{ProviderBaseURL: "ftp://prov", ProviderUser: "u", ProviderPass: "p"}).Validate(); err == nil {
		t.Error("non-http provider URL should fail")
	}
	if err := (&Config{ProviderBaseURL: "http://prov"}).Validate(); err == nil {
		t.Error("missing credentials should fail")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nSTREAMFRONT_TEST_A=one\nSTREAMFRONT_TEST_B=\"two words\"\n\nbroken-line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STREAMFRONT_TEST_A", "")
	t.Setenv("STREAMFRONT_TEST_B", "")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("STREAMFRONT_TEST_A"); got != "one" {
		t.Errorf("A = %q", got)
	}
	if got := os.Getenv("STREAMFRONT_TEST_B"); got != "two words" {
		t.Errorf("B = %q (quotes should be stripped)", got)
	}
}

func TestLoadEnvFile_missingIsNotError(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("missing file should be nil error, got %v", err)
	}
}
