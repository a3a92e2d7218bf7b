package main

import (
	"context"   // context package is needed for Redis operations
	"errors"    // Server shutdown errors
	"net/http"  // HTTP server
	"os"        // Signal handling
	"os/signal" // Signal handling
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"collector_hub/internal/api"         // Custom package for API handlers
	"collector_hub/internal/cardlookup"  // Third-party card catalogs
	"collector_hub/internal/collection"  // Collection service
	"collector_hub/internal/config"      // Custom package for configuration
	"collector_hub/internal/db"          // Database connection and repository
	"collector_hub/internal/events"      // Tournament events
	"collector_hub/internal/gifts"       // Card gifts
	"collector_hub/internal/marketplace" // Listings and offers
	"collector_hub/internal/messaging"   // Direct messages
	"collector_hub/internal/middleware"  // Custom package for middleware
	"collector_hub/internal/orders"      // Order fulfillment
	"collector_hub/internal/realtime"    // Websocket hub
	"collector_hub/internal/scheduler"   // Offer expiry sweeper
	"collector_hub/internal/social"      // Follows and posts
	"collector_hub/internal/storage"     // Media buckets
	"collector_hub/internal/wallet"      // Wallet service

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetLevel(logrus.DebugLevel)
	}

	// Connect to the database selected by DB_DRIVER
	gdb, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	defer db.Close(gdb)
	st := db.NewRepository(gdb)

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	defer redisClient.Close()

	// Test Redis connection
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	blobs, err := storage.NewLocal(cfg.StorageDir, cfg.PublicBaseURL)
	if err != nil {
		logrus.Fatalf("failed to prepare storage: %v", err)
	}

	hub := realtime.NewHub(64)
	httpClient := &http.Client{Timeout: 15 * time.Second}
	providers := cardlookup.DefaultProviders(httpClient, cardlookup.DefaultEndpoints, cardlookup.Keys{
		PokemonTCG: cfg.PokemonTCGAPIKey,
		JustTCG:    cfg.JustTCGAPIKey,
	})
	var vision *cardlookup.Vision
	if cfg.VisionAPIKey != "" {
		vision = cardlookup.NewVision(&http.Client{Timeout: 60 * time.Second}, cfg.VisionAPIURL, cfg.VisionAPIKey, cfg.VisionModel)
	}
	lookup := cardlookup.NewService(st, redisClient, providers, vision)
	market := marketplace.NewService(st, marketplace.WithPublisher(hub), marketplace.WithCache(redisClient))

	// Sweep lapsed offers in the background
	sched := scheduler.New(30 * time.Second)
	if err := sched.Add(cfg.OfferSweepSpec, "expire_offers", market.ExpireOffers); err != nil {
		logrus.Fatalf("invalid OFFER_SWEEP_SPEC %q: %v", cfg.OfferSweepSpec, err)
	}
	sched.Start()

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	r := api.NewRouter(api.Deps{
		Store:       st,
		Redis:       redisClient,
		Hub:         hub,
		JWTSecret:   cfg.JWTSecret,
		StorageDir:  cfg.StorageDir,
		LookupLimit: middleware.NewRateLimiter(float64(cfg.LookupRatePerSec), cfg.LookupBurst),
		Marketplace: market,
		Orders:      orders.NewService(st, hub, redisClient),
		Wallet:      wallet.NewService(st, redisClient),
		Collection:  collection.NewService(st, blobs, lookup),
		Lookup:      lookup,
		Messaging:   messaging.NewService(st, hub),
		Gifts:       gifts.NewService(st, hub),
		Social:      social.NewService(st, blobs, hub),
		Events:      events.NewService(st),
	})

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running") // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	// Wait for a shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithField("error", err.Error()).Error("Server shutdown failed")
	}
	sched.Stop(ctx)
}
