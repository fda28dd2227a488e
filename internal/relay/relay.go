// Package relay streams upstream resources (media segments, encryption keys)
// back to clients byte-for-byte. Bodies are never buffered whole: io.Copy
// moves data as fast as the client reads it and no faster, and a client
// disconnect cancels the upstream fetch through the request context.
package relay

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/streamfront/streamfront/internal/httpclient"
	"github.com/streamfront/streamfront/internal/metrics"
	"github.com/streamfront/streamfront/internal/safeurl"
	"github.com/streamfront/streamfront/internal/upstream"
)

// Handler serves GET /api/relay?target=<absolute url>.
//
// Any authorized caller can relay any URL: the key is a single shared secret
// with no binding to the target it was issued for. Scoping tokens per target
// would close that hole but breaks the deployed playlist format, so the
// shared-key semantics stay; the scheme check below at least pins targets to
// http(s).
type Handler struct {
	Upstream *upstream.Client

	seq atomic.Uint64 // correlates log lines for one relay request
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	seq := h.seq.Add(1)
	target := r.URL.Query().Get("target")
	if target == "" {
		http.Error(w, "missing target", http.StatusBadRequest)
		return
	}
	if !safeurl.IsHTTPOrHTTPS(target) {
		http.Error(w, "invalid target", http.StatusBadRequest)
		return
	}

	release := httpclient.StreamHostSem.Acquire(target)
	defer release()

	resp, err := h.Upstream.Open(r.Context(), target)
	if err != nil {
		var ue *upstream.Error
		if errors.As(err, &ue) && ue.Status != 0 {
			log.Printf("relay: seq=%d upstream status=%d target=%s body=%q", seq, ue.Status, safeurl.Redact(target), ue.Body)
		} else {
			log.Printf("relay: seq=%d upstream fetch failed target=%s err=%v", seq, safeurl.Redact(target), err)
		}
		http.Error(w, "upstream segment fetch failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	// Players cache segments themselves; a stale key or segment served from
	// an intermediary cache breaks playback.
	w.Header().Set("Cache-Control", "no-store")

	n, err := io.Copy(w, resp.Body)
	metrics.RelayBytes.Add(float64(n))
	if err != nil {
		if isClientDisconnect(err) {
			log.Printf("relay: seq=%d client disconnected target=%s bytes=%d", seq, safeurl.Redact(target), n)
			return
		}
		log.Printf("relay: seq=%d copy failed target=%s bytes=%d err=%v", seq, safeurl.Redact(target), n, err)
	}
}

// isClientDisconnect reports whether a copy error means the downstream client
// went away (normal for players zapping channels), as opposed to an upstream
// read failure worth a louder log line.
func isClientDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "use of closed network connection")
}
