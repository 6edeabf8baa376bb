package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rekohub/storefront-scraper/internal/api"
	"github.com/rekohub/storefront-scraper/internal/browser"
	"github.com/rekohub/storefront-scraper/internal/config"
	"github.com/rekohub/storefront-scraper/internal/discover"
	"github.com/rekohub/storefront-scraper/internal/fetch"
	"github.com/rekohub/storefront-scraper/internal/scrape"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Headless browser is optional: without it every page is scraped from
	// its static HTML and SPA storefronts degrade to best effort.
	var renderer fetch.Renderer
	if cfg.Browser.Enabled {
		b, err := browser.New(&browser.Options{
			Headless:       cfg.Browser.Headless,
			RenderTimeout:  cfg.Browser.Timeout,
			MaxPages:       cfg.Browser.MaxPages,
			ViewportWidth:  cfg.Browser.ViewportWidth,
			ViewportHeight: cfg.Browser.ViewportHeight,
			Locale:         cfg.Browser.Locale,
		})
		if err != nil {
			logger.Warn("browser unavailable, rendering disabled", "error", err)
		} else {
			defer b.Close()
			renderer = b
		}
	}

	// Redis page cache is optional as well.
	var cache *fetch.Cache
	if cfg.Cache.RedisAddr != "" {
		cache, err = fetch.NewCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL)
		if err != nil {
			logger.Warn("redis unavailable, page cache disabled", "addr", cfg.Cache.RedisAddr, "error", err)
		} else {
			defer cache.Close()
		}
	}

	fetcher := fetch.New(fetch.Options{
		Timeout:     cfg.Scraper.FetchTimeout,
		RequestsPer: cfg.Scraper.RequestInterval,
		Renderer:    renderer,
		Cache:       cache,
	})
	discoverer := discover.New(fetcher, discover.Options{MaxLinks: cfg.Scraper.ItemCap})
	orchestrator := scrape.New(fetcher, discoverer, scrape.Options{
		Workers:  cfg.Scraper.Workers,
		ItemCap:  cfg.Scraper.ItemCap,
		Deadline: cfg.Scraper.Deadline,
	})

	handlers := api.NewHandlers(orchestrator, cfg.Delivery, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	handlers.Register(r)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("storefront scraper listening",
		"addr", server.Addr,
		"workers", cfg.Scraper.Workers,
		"browser", renderer != nil,
		"cache", cache != nil)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
