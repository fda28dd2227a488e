// Package guard authorizes API requests against the shared access key.
//
// The trust model is deliberately simple and documented here precisely:
// requests carrying no Origin header are treated as same-instance traffic
// (the bundled frontend served from this process) and pass without a key
// when TrustSameInstance is set. Origin is trivially forgeable by non-browser
// clients, so this is a weak boundary; it exists for frontend convenience,
// not as a security control, and must not be strengthened beyond what is
// described here. Everything else needs the key, via the X-App-Key header,
// or the "key" query parameter for players that cannot set headers.
package guard

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/streamfront/streamfront/internal/metrics"
)

// HeaderName carries the access key on API calls from the frontend.
const HeaderName = "X-App-Key"

// QueryParam carries the access key on relay/playlist URLs.
const QueryParam = "key"

// Decision is the outcome of an authorization check.
type Decision struct {
	Allow  bool
	Status int    // HTTP status when denied
	Reason string // "unconfigured", "unauthorized"; "same-instance" or "key" when allowed
}

// Authorize applies the access policy. A missing configured key fails closed
// with a configuration error: the service never falls open because the
// operator forgot to set a secret.
func Authorize(configuredKey string, trustSameInstance bool, origin, suppliedKey string) Decision {
	if configuredKey == "" {
		return Decision{Status: http.StatusInternalServerError, Reason: "unconfigured"}
	}
	if origin == "" && trustSameInstance {
		return Decision{Allow: true, Reason: "same-instance"}
	}
	if subtle.ConstantTimeCompare([]byte(suppliedKey), []byte(configuredKey)) == 1 {
		return Decision{Allow: true, Reason: "key"}
	}
	return Decision{Status: http.StatusUnauthorized, Reason: "unauthorized"}
}

// Guard wraps handlers with the access check.
type Guard struct {
	Key               string
	TrustSameInstance bool
}

// Middleware rejects unauthorized requests before any upstream work happens.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		supplied := r.Header.Get(HeaderName)
		if supplied == "" {
			supplied = r.URL.Query().Get(QueryParam)
		}
		d := Authorize(g.Key, g.TrustSameInstance, r.Header.Get("Origin"), supplied)
		if !d.Allow {
			metrics.Rejected.WithLabelValues(d.Reason).Inc()
			log.Printf("guard: deny reason=%s path=%s remote=%s", d.Reason, r.URL.Path, r.RemoteAddr)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(d.Status)
			if d.Reason == "unconfigured" {
				w.Write([]byte(`{"error":"access key not configured on the server"}`))
			} else {
				w.Write([]byte(`{"error":"unauthorized"}`))
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}
