package httpclient

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"testing"

	"github.com/andybalholm/brotli"
)

func TestNewRequest_setsIdentifyingHeaders(t *testing.T) {
	req, err := NewRequest(http.MethodGet, "http://upstream/player_api.php")
	if err != nil {
		t.Fatal(err)
	}
	if got := req.Header.Get("User-Agent"); got != UserAgent {
		t.Errorf("User-Agent = %q", got)
	}
	if got := req.Header.Get("Accept-Encoding"); got != "gzip, br" {
		t.Errorf("Accept-Encoding = %q", got)
	}
}

func TestDecodedBody_identity(t *testing.T) {
	resp := &http.Response{
		Header: http.Header{},
		Body:   io.NopCloser(bytes.NewReader([]byte("plain"))),
	}
	rc, err := DecodedBody(resp)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(rc)
	if string(got) != "plain" {
		t.Errorf("got %q", got)
	}
}

func TestDecodedBody_brotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	bw.Write([]byte(`[{"category_id":"1"}]`))
	bw.Close()
	resp := &http.Response{
		Header: http.Header{"Content-Encoding": []string{"br"}},
		Body:   io.NopCloser(&buf),
	}
	rc, err := DecodedBody(resp)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `[{"category_id":"1"}]` {
		t.Errorf("got %q", got)
	}
}

func TestDecodedBody_gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("zipped"))
	zw.Close()
	resp := &http.Response{
		Header: http.Header{"Content-Encoding": []string{"gzip"}},
		Body:   io.NopCloser(&buf),
	}
	rc, err := DecodedBody(resp)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(rc)
	if string(got) != "zipped" {
		t.Errorf("got %q", got)
	}
}

func TestForStreaming_noTotalTimeout(t *testing.T) {
	if ForStreaming().Timeout != 0 {
		t.Error("streaming client must not have a total timeout")
	}
	if Default().Timeout == 0 {
		t.Error("default client must have a bounded timeout")
	}
}

func TestHostSemaphore_limitsPerHost(t *testing.T) {
	sem := NewHostSemaphore(1)
	release := sem.Acquire("http://a/seg1.ts")
	acquired := make(chan struct{})
	go func() {
		r := sem.Acquire("http://a/seg2.ts")
		close(acquired)
		r()
	}()
	select {
	case <-acquired:
		t.Fatal("second acquire on same host should block")
	default:
	}
	// Different host is independent.
	r2 := sem.Acquire("http://b/seg1.ts")
	r2()
	release()
	<-acquired
}
