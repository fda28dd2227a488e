// Command streamfront relays an Xtream-style live TV provider: cached metadata
// endpoints for a frontend, playlist rewriting, and byte-for-byte segment
// relay, all behind a shared access key. Zero interaction after .env.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streamfront/streamfront/internal/config"
	"github.com/streamfront/streamfront/internal/health"
	"github.com/streamfront/streamfront/internal/safeurl"
	"github.com/streamfront/streamfront/internal/server"
	"github.com/streamfront/streamfront/internal/upstream"
)

func main() {
	envFile := flag.String("env", ".env", "Env file with STREAMFRONT_* settings")
	addr := flag.String("addr", "", "Listen address (default: STREAMFRONT_ADDR or :3000)")
	skipCheck := flag.Bool("skip-check", false, "Skip the provider account check at startup")
	flag.Parse()

	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[streamfront] ")

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Printf("Load %s: %v", *envFile, err)
		os.Exit(1)
	}
	cfg := config.Load()
	if *addr != "" {
		cfg.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Config: %v", err)
		os.Exit(1)
	}
	if cfg.AppKey == "" {
		log.Print("STREAMFRONT_APP_KEY is not set: every /api request will be refused until it is")
	}

	up := upstream.New(cfg.ProviderBaseURL, cfg.ProviderUser, cfg.ProviderPass,
		cfg.UpstreamTimeout, cfg.UpstreamRPS, cfg.UpstreamBurst)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*skipCheck {
		log.Printf("Checking provider %s ...", safeurl.Redact(cfg.ProviderBaseURL))
		checkCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		err := health.CheckProvider(checkCtx, up)
		cancel()
		if err != nil {
			log.Printf("Provider check failed: %v", err)
			os.Exit(1)
		}
		log.Print("Provider OK")
	}

	if err := server.New(cfg, up).Run(ctx); err != nil {
		log.Printf("Serve failed: %v", err)
		os.Exit(1)
	}
}
