// Package server wires the HTTP surface: guarded /api endpoints backed by the
// metadata cache and upstream client, plus unguarded /healthz and /metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/netutil"

	"github.com/streamfront/streamfront/internal/cache"
	"github.com/streamfront/streamfront/internal/config"
	"github.com/streamfront/streamfront/internal/epg"
	"github.com/streamfront/streamfront/internal/guard"
	"github.com/streamfront/streamfront/internal/metrics"
	"github.com/streamfront/streamfront/internal/playlist"
	"github.com/streamfront/streamfront/internal/relay"
	"github.com/streamfront/streamfront/internal/safeurl"
	"github.com/streamfront/streamfront/internal/upstream"
)

// Server owns the long-lived pieces. Build one with New, then Run.
type Server struct {
	cfg      *config.Config
	upstream *upstream.Client
	cache    *cache.Store
	guard    *guard.Guard
	rewriter *playlist.Rewriter
}

func New(cfg *config.Config, up *upstream.Client) *Server {
	return &Server{
		cfg:      cfg,
		upstream: up,
		cache:    cache.NewStore(),
		guard:    &guard.Guard{Key: cfg.AppKey, TrustSameInstance: cfg.TrustSameInstance},
		rewriter: &playlist.Rewriter{RelayPath: "/api/relay", Key: cfg.AppKey},
	}
}

// Handler builds the full routing tree. Split out from Run so tests can drive
// it through httptest without a listener.
func (s *Server) Handler() http.Handler {
	guarded := func(h http.Handler) http.Handler { return s.guard.Middleware(h) }

	mux := http.NewServeMux()
	mux.Handle("GET /api/categories", guarded(http.HandlerFunc(s.handleCategories)))
	mux.Handle("GET /api/channels", guarded(http.HandlerFunc(s.handleChannels)))
	mux.Handle("GET /api/channels/{categoryId}", guarded(http.HandlerFunc(s.handleChannelsByCategory)))
	mux.Handle("GET /api/guide/{streamId}", guarded(http.HandlerFunc(s.handleGuide)))
	mux.Handle("GET /api/stream/{streamId}", guarded(http.HandlerFunc(s.handleStream)))
	mux.Handle("GET /api/relay", guarded(&relay.Handler{Upstream: s.upstream}))
	mux.Handle("GET /healthz", http.HandlerFunc(serveHealth))
	mux.Handle("GET /metrics", metrics.Handler())

	return logRequests(cors(mux))
}

// Run blocks until ctx is cancelled or the listener fails. On shutdown it
// stops accepting new connections and waits briefly for in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.MaxClients > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxClients)
	}

	srv := &http.Server{Handler: s.Handler()}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("listening on %s (provider %s)", s.cfg.Addr, safeurl.Redact(s.cfg.ProviderBaseURL))
		serverErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Print("shutting down ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
		<-serverErr
		return nil
	}
}

// handleCategories serves the provider's live category list. A refresh param
// (any value) drops the cached copy first so this load hits the provider.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("refresh") {
		s.cache.Invalidate("categories")
	}
	s.serveCachedAPI(w, r, "categories", "get_live_categories", nil)
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	s.serveCachedAPI(w, r, "channels", "get_live_streams", nil)
}

func (s *Server) handleChannelsByCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("categoryId")
	s.serveCachedAPI(w, r, "channels:"+id, "get_live_streams", url.Values{"category_id": {id}})
}

// serveCachedAPI runs a player_api action through the metadata cache and
// passes the provider's JSON through untouched.
func (s *Server) serveCachedAPI(w http.ResponseWriter, r *http.Request, key, action string, params url.Values) {
	v, err := s.cache.GetOrLoad(r.Context(), key, s.cfg.MetadataTTL, func(ctx context.Context) (any, error) {
		return s.upstream.Call(ctx, action, params)
	})
	if err != nil {
		writeLoadError(w, key, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, v.([]byte))
}

// handleGuide serves the short EPG for one stream, normalized: forced UTF-8,
// base64-looking text fields decoded, epoch timestamps left as raw seconds.
func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("streamId")
	key := "guide:" + id
	v, err := s.cache.GetOrLoad(r.Context(), key, s.cfg.GuideTTL, func(ctx context.Context) (any, error) {
		raw, err := s.upstream.Call(ctx, "get_short_epg", url.Values{
			"stream_id": {id},
			"limit":     {strconv.Itoa(s.cfg.GuideLimit)},
		})
		if err != nil {
			return nil, err
		}
		listings, err := epg.Normalize(raw, s.cfg.GuideLimit)
		if err != nil {
			return nil, fmt.Errorf("normalize guide for stream %s: %w", id, err)
		}
		body, err := json.Marshal(struct {
			EpgListings []epg.Listing `json:"epg_listings"`
		}{listings})
		if err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		writeLoadError(w, key, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, v.([]byte))
}

// handleStream fetches the provider playlist for a stream and rewrites every
// media URI into a same-origin relay URL. Never cached: live playlists change
// every few seconds.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("streamId")
	body, finalURL, err := s.upstream.FetchPlaylist(r.Context(), id)
	if err != nil {
		writeLoadError(w, "stream:"+id, err, http.StatusBadGateway)
		return
	}
	rewritten := s.rewriter.Rewrite(body, finalURL)
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(rewritten))
}

func writeJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// writeLoadError maps failures to client responses with a generic body;
// details stay in the logs. upstreamStatus is used for provider failures
// (500 on metadata routes, 502 on playlist fetches); anything else is a 500.
func writeLoadError(w http.ResponseWriter, key string, err error, upstreamStatus int) {
	var ue *upstream.Error
	if errors.As(err, &ue) {
		log.Printf("api: %s upstream failure: %v body=%q", key, ue, ue.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(upstreamStatus)
		w.Write([]byte(`{"error":"upstream request failed"}`))
		return
	}
	log.Printf("api: %s failed: %v", key, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(`{"error":"internal error"}`))
}

func serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// cors lets a frontend on another origin call the API with the access key
// header. Preflights never carry the key, so they are answered here, before
// the guard.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+guard.HeaderName)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *loggingResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lw, r)
		status := lw.status
		if status == 0 {
			status = http.StatusOK
		}
		log.Printf(
			"http: %s %s status=%d bytes=%d dur=%s ua=%q remote=%s",
			r.Method, r.URL.Path, status, lw.bytes, time.Since(start).Round(time.Millisecond), r.UserAgent(), r.RemoteAddr,
		)
	})
}
