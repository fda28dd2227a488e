package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds provider + relay service settings. Load from env (call
// LoadEnvFile(".env") first to use a .env file; keep .env out of git).
type Config struct {
	// Provider (Xtream player_api)
	ProviderBaseURL string // e.g. http://provider:8080
	ProviderUser    string
	ProviderPass    string

	// Shared access key protecting /api. Empty means the guard fails closed
	// on every request; it never silently allows.
	AppKey string

	// Serving
	Addr       string // e.g. :3000
	MaxClients int    // cap on concurrent client connections; 0 = default 256

	// Upstream behavior
	UpstreamTimeout time.Duration // per metadata/playlist call; segments stream without a total deadline
	UpstreamRPS     float64       // provider API rate limit (requests/second)
	UpstreamBurst   int

	// Cache staleness windows. Guide data changes faster than the channel
	// lineup, so it gets a much shorter window.
	MetadataTTL time.Duration
	GuideTTL    time.Duration

	// GuideLimit is the number of listings returned per guide lookup
	// ("now + next few").
	GuideLimit int

	// TrustSameInstance allows requests without an Origin header through the
	// guard unkeyed. This mirrors the trust the bundled frontend relies on;
	// see the guard package docs for why this boundary is weak.
	TrustSameInstance bool
}

// Load reads config from environment.
func Load() *Config {
	c := &Config{
		ProviderBaseURL:   strings.TrimSuffix(os.Getenv("STREAMFRONT_PROVIDER_URL"), "/"),
		ProviderUser:      os.Getenv("STREAMFRONT_PROVIDER_USER"),
		ProviderPass:      os.Getenv("STREAMFRONT_PROVIDER_PASS"),
		AppKey:            os.Getenv("STREAMFRONT_APP_KEY"),
		Addr:              getEnv("STREAMFRONT_ADDR", ":3000"),
		MaxClients:        getEnvInt("STREAMFRONT_MAX_CLIENTS", 256),
		UpstreamTimeout:   getEnvDuration("STREAMFRONT_UPSTREAM_TIMEOUT", 15*time.Second),
		UpstreamRPS:       getEnvFloat("STREAMFRONT_UPSTREAM_RPS", 5),
		UpstreamBurst:     getEnvInt("STREAMFRONT_UPSTREAM_BURST", 10),
		MetadataTTL:       getEnvDuration("STREAMFRONT_METADATA_TTL", 5*time.Minute),
		GuideTTL:          getEnvDuration("STREAMFRONT_GUIDE_TTL", 60*time.Second),
		GuideLimit:        getEnvInt("STREAMFRONT_GUIDE_LIMIT", 5),
		TrustSameInstance: getEnvBool("STREAMFRONT_TRUST_SAME_INSTANCE", true),
	}
	if c.MaxClients <= 0 {
		c.MaxClients = 256
	}
	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = 15 * time.Second
	}
	if c.UpstreamRPS <= 0 {
		c.UpstreamRPS = 5
	}
	if c.UpstreamBurst <= 0 {
		c.UpstreamBurst = 10
	}
	if c.GuideLimit <= 0 {
		c.GuideLimit = 5
	}
	return c
}

// Validate returns an error when the provider settings are unusable. A missing
// AppKey is not an error here: the guard rejects requests at runtime so the
// operator sees 500s instead of a dead process.
func (c *Config) Validate() error {
	if c.ProviderBaseURL == "" {
		return fmt.Errorf("STREAMFRONT_PROVIDER_URL is required")
	}
	if !strings.HasPrefix(c.ProviderBaseURL, "http://") && !strings.HasPrefix(c.ProviderBaseURL, "https://") {
		return fmt.Errorf("STREAMFRONT_PROVIDER_URL must be http(s), got %q", c.ProviderBaseURL)
	}
	if c.ProviderUser == "" || c.ProviderPass == "" {
		return fmt.Errorf("STREAMFRONT_PROVIDER_USER and STREAMFRONT_PROVIDER_PASS are required")
	}
	return nil
}

// LoadEnvFile reads path and sets environment variables for each "KEY=value"
// line. Skips blanks and #-comments; a missing file is not an error.
func LoadEnvFile(path string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := unquote(strings.TrimSpace(line[idx+1:]))
		if key != "" {
			os.Setenv(key, value)
		}
	}
	return sc.Err()
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return defaultVal
		}
		return f
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
