// Package upstream talks to the Xtream-style provider: the player_api.php
// query API for metadata and the /live/ path for playlists and segments.
// Credentials are embedded server-side; they never appear in responses sent
// to clients (the playlist rewriter points every URI back at this service).
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/streamfront/streamfront/internal/httpclient"
	"github.com/streamfront/streamfront/internal/metrics"
)

// maxDiagBody caps how much of an upstream error body is kept for diagnostics.
// The raw body is logged, never echoed to clients.
const maxDiagBody = 256

// Error is a failed provider call: a non-2xx status or a transport failure.
type Error struct {
	Action string // "get_live_streams", "playlist", "segment", ...
	Status int    // 0 when the request never got a response
	Body   string // truncated upstream body, for logs only
	Err    error  // transport cause, when Status == 0
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s: HTTP %d", e.Action, e.Status)
	}
	return fmt.Sprintf("upstream %s: %v", e.Action, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client performs provider calls. Safe for concurrent use.
type Client struct {
	BaseURL string // scheme://host[:port], no trailing slash
	User    string
	Pass    string

	// HTTP is used for metadata and playlist calls (bounded total timeout).
	// Stream is used for segment/key relays (no total timeout; cancellation
	// via request context).
	HTTP   *http.Client
	Stream *http.Client

	// Limiter bounds player_api.php calls so cache misses and guide polling
	// cannot hammer the provider. Nil disables limiting.
	Limiter *rate.Limiter
}

// New builds a client with the shared tuned transports.
func New(baseURL, user, pass string, timeout time.Duration, rps float64, burst int) *Client {
	c := &Client{
		BaseURL: baseURL,
		User:    user,
		Pass:    pass,
		HTTP:    httpclient.WithTimeout(timeout),
		Stream:  httpclient.ForStreaming(),
	}
	if rps > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c
}

// apiURL builds <base>/player_api.php with credentials plus extra params.
// Caller-supplied params cannot override the credential fields.
func (c *Client) apiURL(action string, params url.Values) string {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("username", c.User)
	q.Set("password", c.Pass)
	q.Set("action", action)
	return c.BaseURL + "/player_api.php?" + q.Encode()
}

// Call performs a player_api.php action and returns the raw response bytes.
// Non-2xx responses become a *Error carrying the status and a truncated body.
func (c *Client) Call(ctx context.Context, action string, params url.Values) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, &Error{Action: action, Err: err}
		}
	}
	body, err := c.get(ctx, action, c.apiURL(action, params), c.HTTP)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(action, "error").Inc()
		return nil, err
	}
	metrics.UpstreamRequests.WithLabelValues(action, "ok").Inc()
	return body, nil
}

// PlaylistURL returns the provider playlist URL for a live stream.
func (c *Client) PlaylistURL(streamID string) string {
	return fmt.Sprintf("%s/live/%s/%s/%s.m3u8",
		c.BaseURL, url.PathEscape(c.User), url.PathEscape(c.Pass), url.PathEscape(streamID))
}

// FetchPlaylist fetches the live playlist for streamID and returns its text
// together with the final URL after redirects. Media URIs must be resolved
// against that final URL, not the one we asked for: providers commonly
// redirect playlist requests to per-session edge hosts.
func (c *Client) FetchPlaylist(ctx context.Context, streamID string) (string, *url.URL, error) {
	req, err := httpclient.NewRequest(http.MethodGet, c.PlaylistURL(streamID))
	if err != nil {
		return "", nil, &Error{Action: "playlist", Err: err}
	}
	req = req.WithContext(ctx)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("playlist", "error").Inc()
		return "", nil, &Error{Action: "playlist", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.UpstreamRequests.WithLabelValues("playlist", "error").Inc()
		return "", nil, &Error{Action: "playlist", Status: resp.StatusCode, Body: readDiag(resp)}
	}
	rc, err := httpclient.DecodedBody(resp)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("playlist", "error").Inc()
		return "", nil, &Error{Action: "playlist", Err: err}
	}
	body, err := io.ReadAll(rc)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("playlist", "error").Inc()
		return "", nil, &Error{Action: "playlist", Err: err}
	}
	metrics.UpstreamRequests.WithLabelValues("playlist", "ok").Inc()
	return string(body), resp.Request.URL, nil
}

// Open starts a streaming fetch of target (a segment or key URL) and returns
// the raw response. No Accept-Encoding is offered: the body must pass through
// byte-for-byte. The caller owns resp.Body.
func (c *Client) Open(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Action: "segment", Err: err}
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := c.Stream.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("segment", "error").Inc()
		return nil, &Error{Action: "segment", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		diag := readDiag(resp)
		resp.Body.Close()
		metrics.UpstreamRequests.WithLabelValues("segment", "error").Inc()
		return nil, &Error{Action: "segment", Status: resp.StatusCode, Body: diag}
	}
	metrics.UpstreamRequests.WithLabelValues("segment", "ok").Inc()
	return resp, nil
}

func (c *Client) get(ctx context.Context, action, u string, client *http.Client) ([]byte, error) {
	req, err := httpclient.NewRequest(http.MethodGet, u)
	if err != nil {
		return nil, &Error{Action: action, Err: err}
	}
	req = req.WithContext(ctx)
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Action: action, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Action: action, Status: resp.StatusCode, Body: readDiag(resp)}
	}
	rc, err := httpclient.DecodedBody(resp)
	if err != nil {
		return nil, &Error{Action: action, Err: err}
	}
	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, &Error{Action: action, Err: err}
	}
	return body, nil
}

// readDiag reads up to maxDiagBody bytes of an error response for logging.
func readDiag(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxDiagBody))
	return string(b)
}
