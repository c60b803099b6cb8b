package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/mediastore/internal/api"
	"github.com/andresuchdata/mediastore/internal/auth"
	"github.com/andresuchdata/mediastore/internal/billing"
	"github.com/andresuchdata/mediastore/internal/cache"
	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/repository/postgres"
	"github.com/andresuchdata/mediastore/internal/service"
	"github.com/andresuchdata/mediastore/internal/storage"
	"github.com/andresuchdata/mediastore/internal/transform"
	"github.com/andresuchdata/mediastore/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	logger.Configure(cfg.Log.Format)
	logger.SetLevel(cfg.Log.Level)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	backends, err := storage.NewBackends(ctx, cfg.Storage)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize storage backends")
	}

	objectCache, err := cache.NewObjectCache(cfg.Cache)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize object cache")
	}
	populator := cache.NewPopulator(objectCache, cfg.Cache.PopulateQueue, cfg.Cache.PopulateWorker)
	defer populator.Close()

	// Initialize services
	policy := service.NewUploadPolicy(cfg.Upload)
	services := &api.Services{
		Media:       service.NewMediaService(backends, cfg.Storage, objectCache, populator, policy, transform.NewRecompressor(cfg.Upload.Compress, cfg.Upload.JPEGQuality)),
		Retrieval:   service.NewRetrievalService(backends.Primary, cfg.Storage, objectCache, populator),
		Access:      service.NewAccessService(postgres.NewCollectionRepository(db), billing.NewClient(cfg.Billing), cfg.Access.CallTimeout),
		Presign:     service.NewPresignService(backends.Presigner, cfg.Storage, policy),
		Identity:    auth.NewResolver(cfg.Auth.JWTSecret, postgres.NewProfileRepository(db)),
		CacheHeader: cfg.Storage.CacheHeader,
	}

	// Initialize HTTP server
	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().
			Str("port", cfg.Server.Port).
			Str("environment", cfg.Storage.Environment).
			Str("bucket", cfg.Storage.Bucket()).
			Str("cache", cfg.Cache.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
