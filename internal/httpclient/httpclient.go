package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// UserAgent identifies this service to the provider. Some upstreams run bot
// filtering that rejects empty or default Go agents.
const UserAgent = "StreamFront/1.0"

const (
	DefaultTimeout         = 15 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
)

var (
	defaultClient   *http.Client
	streamingClient *http.Client
)

func init() {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
	defaultClient = &http.Client{
		Timeout:   DefaultTimeout,
		Transport: transport,
	}
	// Streaming fetches must not carry a total-request timeout: a segment or
	// key download runs as long as the player keeps reading. Cancellation
	// comes from the request context instead.
	streamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   MaxIdleConnsPerHost,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}
}

// Default returns the shared tuned HTTP client for metadata and playlist calls.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout and the same transport as Default.
func WithTimeout(timeout time.Duration) *http.Client {
	t, ok := defaultClient.Transport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t.Clone(),
	}
}

// ForStreaming returns the client used for segment/key relays: no overall
// timeout, bounded response-header wait, cancellation via request context.
func ForStreaming() *http.Client {
	return streamingClient
}

// NewRequest builds a GET request with the identifying User-Agent and an
// Accept-Encoding the provider may answer with. gzip is decoded by DecodedBody;
// brotli too (some provider fronts compress JSON with br regardless of what
// was asked for).
func NewRequest(method, url string) (*http.Request, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept-Encoding", "gzip, br")
	return req, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (rc readCloser) Close() error { return rc.close() }

// DecodedBody wraps resp.Body with the decoder matching Content-Encoding.
// Returns resp.Body unchanged for identity or unknown encodings. The caller
// closes the returned ReadCloser; closing it closes the underlying body.
func DecodedBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		return readCloser{Reader: brotli.NewReader(resp.Body), close: resp.Body.Close}, nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		return readCloser{Reader: zr, close: func() error {
			zr.Close()
			return resp.Body.Close()
		}}, nil
	default:
		return resp.Body, nil
	}
}
