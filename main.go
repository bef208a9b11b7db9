package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sajtstudio-gateway/auth"
	"sajtstudio-gateway/cache"
	"sajtstudio-gateway/config"
	"sajtstudio-gateway/handler"
	appLogger "sajtstudio-gateway/logger"
	"sajtstudio-gateway/middleware"
	"sajtstudio-gateway/proxy"
	redisClient "sajtstudio-gateway/redis"
	"sajtstudio-gateway/registry"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize logger
	appLogger.Initialize()

	// Load configuration
	cfg := config.MustLoadConfig()
	log.Info().
		Str("environment", cfg.WebServer.Environment).
		Bool("preview_enabled", cfg.Preview.Enabled).
		Msg("Configuration loaded successfully")

	// Initialize Redis client
	rdb := redisClient.NewClient(cfg.Redis)

	// Initialize registry read cache (if enabled)
	var cacheClient *cache.Cache
	if cfg.Cache.Enabled {
		var err error
		cacheClient, err = cache.New(cfg.Cache)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize cache")
		}
	} else {
		log.Info().Msg("Cache disabled in configuration")
	}

	// Slug registry, relay and session signer
	store := registry.New(rdb, cacheClient)
	relay := proxy.NewRelay(cfg.Proxy)
	signer := auth.NewTokenSigner(cfg.Embed.AuthSecret, cfg.IsProduction())
	if cfg.IsProduction() && cfg.Embed.AuthSecret == "" {
		log.Warn().Msg("EMBED_AUTH_SECRET not set - embed sessions cannot be created")
	}

	// Create handler with dependency injection
	embedHandler := handler.NewEmbedHandler(rdb, store, cfg, relay, signer)

	// Set up router
	r := mux.NewRouter()

	// Apply global middleware
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	adminAuth := middleware.NewAdminAuth(cfg.Admin.APIKey, cfg.IsProduction())

	r.Use(middleware.CORS)
	r.Use(middleware.RequestLogger)
	r.Use(rateLimiter.Limit)

	// Internal routes are registered ahead of the slug catch-all, so a
	// registry entry can never shadow them.
	r.HandleFunc("/health", embedHandler.HealthCheck).Methods("GET")
	r.HandleFunc("/api/embed-auth/{slug}", embedHandler.VerifyEmbedPassword).Methods("POST")
	r.HandleFunc("/api/embed-proxy/{slug}", embedHandler.EmbedProxy).Methods("GET", "POST")
	r.HandleFunc("/api/embed-proxy/{slug}/{rest:.*}", embedHandler.EmbedProxy).Methods("GET", "POST")
	r.HandleFunc("/api/generated/verify", embedHandler.VerifyGenerated).Methods("POST")

	// Registry management, behind the admin key
	r.Handle("/api/protected-embeds", adminAuth.Protect(http.HandlerFunc(embedHandler.UpsertProtectedEmbed))).Methods("POST")
	r.Handle("/api/protected-embeds/{slug}", adminAuth.Protect(http.HandlerFunc(embedHandler.DeleteProtectedEmbed))).Methods("DELETE")
	r.Handle("/api/protected-embeds/{slug}/qr", adminAuth.Protect(http.HandlerFunc(embedHandler.EmbedQR))).Methods("GET")
	r.Handle("/api/password-generator", adminAuth.Protect(http.HandlerFunc(embedHandler.GeneratePassword))).Methods("GET")
	r.Handle("/api/embed-visits", adminAuth.Protect(http.HandlerFunc(embedHandler.EmbedVisits))).Methods("GET")

	// Slug routes (must be last to avoid conflicts)
	r.HandleFunc("/{slug}", embedHandler.ServeSlug).Methods("GET", "POST")
	r.HandleFunc("/{slug}/{rest:.*}", embedHandler.ServeSlug).Methods("GET", "POST")

	// Configure HTTP server
	serverAddress := fmt.Sprintf("%s:%s", cfg.WebServer.IP, cfg.WebServer.Port)
	server := &http.Server{
		Addr:         serverAddress,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.WebServer.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WebServer.WriteTimeout) * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("address", serverAddress).
			Str("scheme", cfg.WebServer.Scheme).
			Msg("Starting server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.WebServer.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Close cache
	if cacheClient != nil {
		cacheClient.Close()
	}

	// Close Redis connection
	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close Redis connection")
	}

	log.Info().Msg("Server stopped gracefully")
}
