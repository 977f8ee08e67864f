package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	config "github.com/frcrag/frcrag/configs"
	"github.com/frcrag/frcrag/internal/application/services"
	"github.com/frcrag/frcrag/internal/core/ports"
	"github.com/frcrag/frcrag/internal/infrastructure/health"
	"github.com/frcrag/frcrag/internal/infrastructure/httpserver"
	"github.com/frcrag/frcrag/internal/infrastructure/inference"
	"github.com/frcrag/frcrag/internal/infrastructure/redis"
	"github.com/frcrag/frcrag/internal/infrastructure/repositories"
	"github.com/frcrag/frcrag/internal/infrastructure/retrieval"
	"github.com/frcrag/frcrag/internal/infrastructure/tunnel"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.Info("Starting query serving pipeline...")

	// Rate limit counters live in Redis when configured, in process
	// memory otherwise.
	var rateLimitRepo ports.RateLimitRepository
	healthCheckers := []ports.HealthChecker{}
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis:", err)
		}
		defer redisClient.Close()
		logger.Info("Connected to Redis successfully")
		rateLimitRepo = repositories.NewRateLimitRedisRepository(redisClient, cfg.RateLimit.KeyPrefix)
		healthCheckers = append(healthCheckers, health.NewRedisHealthChecker(redisClient))
	} else {
		logger.Info("Redis not configured, using in-process rate limit counters")
		rateLimitRepo = repositories.NewRateLimitMemoryRepository()
	}

	retriever := retrieval.NewHTTPRetriever(&cfg.Retrieval, logger)
	inferenceClient := inference.NewOllamaClient(&cfg.Inference, logger)

	rateLimiter := services.NewRateLimiterService(rateLimitRepo, &services.RateLimiterConfig{
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		Window:            cfg.RateLimit.Window,
	}, logger)

	answerCache := services.NewAnswerCacheService(&services.AnswerCacheConfig{
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	})

	queryService := services.NewQueryService(answerCache, retriever, inferenceClient, services.QueryConfig{
		DefaultTopK:               cfg.Retrieval.TopK,
		InferenceTimeout:          cfg.Inference.Timeout,
		DegradeOnRetrievalFailure: cfg.Retrieval.OnUnavailable == "degrade",
	}, logger)

	var tunnelManager ports.TunnelManager
	if cfg.Tunnel.Provider != "" {
		tunnelManager = tunnel.NewManager(&cfg.Tunnel, logger)
	}

	healthCheckers = append(healthCheckers,
		health.NewRetrieverHealthChecker(retriever),
		health.NewInferenceHealthChecker(inferenceClient),
	)

	// Create server configuration
	serverConfig := &httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		TLSCertFile:    cfg.Server.TLSCertFile,
		TLSKeyFile:     cfg.Server.TLSKeyFile,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustProxy:     cfg.Server.TrustProxy,
		APIKeySecret:   cfg.Auth.APIKeySecret,
		AdminToken:     cfg.Admin.Token,
		AdminTokenHash: cfg.Admin.TokenHash,
	}

	deps := httpserver.ServerDeps{
		QueryService:   queryService,
		RateLimiter:    rateLimiter,
		AnswerCache:    answerCache,
		TunnelManager:  tunnelManager,
		ImageFetcher:   retriever,
		HealthCheckers: healthCheckers,
	}

	server := httpserver.NewServer(serverConfig, logger, deps)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	if tunnelManager != nil && cfg.Tunnel.Autostart {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Tunnel.StartupTimeout)
			defer cancel()
			if _, err := tunnelManager.Start(ctx); err != nil {
				logger.WithError(err).Error("Tunnel autostart failed")
			}
		}()
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if tunnelManager != nil {
		tunnelManager.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
