package httpclient

import (
	"net/url"
	"sync"
)

// HostSemaphore is a process-global per-host concurrency limiter. All relay
// fetches in the process share the semaphore for a given host, so a burst of
// players cannot open an unbounded number of connections to one upstream.
//
//	release := httpclient.StreamHostSem.Acquire(target)
//	defer release()
type HostSemaphore struct {
	mu    sync.Mutex
	sems  map[string]chan struct{}
	limit int
}

// StreamHostSem caps concurrent segment/key fetches per upstream host.
// 32 covers several simultaneous players; metadata calls are rate-limited
// separately and do not go through this.
var StreamHostSem = NewHostSemaphore(32)

func NewHostSemaphore(concurrency int) *HostSemaphore {
	if concurrency < 1 {
		concurrency = 1
	}
	return &HostSemaphore{
		sems:  make(map[string]chan struct{}),
		limit: concurrency,
	}
}

// Acquire blocks until a slot is available for the URL's host and returns a
// release func. Accepts a full URL; path and query are ignored.
func (h *HostSemaphore) Acquire(target string) func() {
	sem := h.semFor(target)
	sem <- struct{}{}
	return func() { <-sem }
}

func (h *HostSemaphore) semFor(target string) chan struct{} {
	key := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		key = u.Scheme + "://" + u.Host
	}
	h.mu.Lock()
	s, ok := h.sems[key]
	if !ok {
		s = make(chan struct{}, h.limit)
		h.sems[key] = s
	}
	h.mu.Unlock()
	return s
}
