package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"image-admission-service/internal/config"
	"image-admission-service/internal/handlers"
	"image-admission-service/internal/middleware"
	"image-admission-service/internal/models"
	"image-admission-service/internal/services"
)

func main() {
	// Initialize logger
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	logger, err := initLogger(level)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(logger)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logger.Warn("Invalid log level, keeping info", zap.String("level", cfg.LogLevel))
	}

	// Classifier chain: the limiter sits outside the breaker so throttled
	// waits count against the caller's deadline, not the classifier's health
	visionClient := services.NewVisionClient(services.VisionOptions{
		Endpoint:           cfg.VisionEndpoint,
		APIKey:             cfg.VisionAPIKey,
		LandmarkMaxResults: cfg.LandmarkMaxResults,
		Logger:             logger,
	})
	breaker := services.NewBreakerClassifier(visionClient, services.DefaultBreakerSettings(), logger)
	limited := services.NewRateLimitedClassifier(breaker, cfg.ClassifierRateLimit, cfg.ClassifierRateBurst)

	pipeline := services.NewPipeline(services.PipelineOptions{
		Normalizer:        services.NewNormalizer(services.NewHEICTranscoder(cfg.JPEGQuality), cfg.MaxImagePixels, logger),
		Classifier:        limited,
		Policy:            services.NewAdmissionPolicy(services.DefaultPolicyRules),
		Scorer:            services.NewLocationScorer(cfg.LocationThresholdKm),
		Expected:          models.Coordinate{Latitude: cfg.ExpectedLatitude, Longitude: cfg.ExpectedLongitude},
		ClassifierTimeout: cfg.ClassifierTimeout,
		Logger:            logger,
	})

	// Inbound rate limiting, shared through Redis when configured
	visitorStore := newVisitorStore(cfg, logger)
	defer visitorStore.Close()

	// Initialize handlers
	readiness := []handlers.ReadinessCheck{
		func() (bool, string) {
			if !visionClient.Configured() {
				return false, "classifier credentials not configured"
			}
			return true, ""
		},
		func() (bool, string) {
			if breaker.Open() {
				return false, "classifier circuit open"
			}
			return true, ""
		},
	}
	if redisStore, ok := visitorStore.(*middleware.RedisVisitorStore); ok {
		readiness = append(readiness, func() (bool, string) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := redisStore.Ping(ctx); err != nil {
				return false, "rate limit store unreachable"
			}
			return true, ""
		})
	}
	healthHandler := handlers.NewHealthHandler(readiness...)
	checkHandler := handlers.NewCheckHandler(pipeline, cfg.MaxFileSizeBytes(), logger)
	statsHandler := handlers.NewStatsHandler(pipeline)
	policyHandler := handlers.NewPolicyHandler(pipeline)

	// Initialize middlewares
	authMiddleware := middleware.NewAuthMiddleware(cfg.APIKey)
	loggerMiddleware := middleware.NewLoggerMiddleware(logger)
	recoveryMiddleware := middleware.NewRecoveryMiddleware(logger)
	corsMiddleware := middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(logger, visitorStore)

	// Set Gin to release mode
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxFileSizeBytes()

	// Apply global middlewares
	router.Use(middleware.RequestID())
	router.Use(loggerMiddleware.RequestLogger())
	router.Use(recoveryMiddleware.RecoveryWithZap())
	router.Use(middleware.Metrics())
	router.Use(corsMiddleware.SetupCORS())

	// Liveness, readiness and metrics (never rate limited)
	router.GET("/", healthHandler.Root)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(rateLimitMiddleware.RateLimit())
	{
		api.GET("/test", healthHandler.APITest)
		api.POST("/check-image", checkHandler.CheckImage)
	}

	// Operator endpoints (API key required when configured)
	protected := router.Group("/")
	protected.Use(authMiddleware.AuthRequired())
	{
		protected.GET("/stats", statsHandler.GetStats)
		protected.GET("/policy", policyHandler.GetPolicy)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in a goroutine
	go func() {
		logger.Info("Starting server",
			zap.String("address", server.Addr),
			zap.Bool("classifier_configured", visionClient.Configured()),
			zap.Int64("max_file_size_mb", cfg.MaxFileSizeMB),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown the server gracefully
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("Server exited gracefully")
	}
}

// newVisitorStore prefers Redis and falls back to the in-process store
func newVisitorStore(cfg *config.Config, logger *zap.Logger) middleware.VisitorStore {
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		store, err := middleware.NewRedisVisitorStore(ctx, middleware.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitBlock)
		if err == nil {
			logger.Info("Using Redis rate limit store", zap.String("addr", cfg.RedisAddr))
			return store
		}
		logger.Warn("Redis unavailable, using in-memory rate limit store", zap.Error(err))
	}
	return middleware.NewMemoryVisitorStore(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitBlock)
}

// initLogger initializes the logger with proper configuration
func initLogger(level zap.AtomicLevel) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = level

	return config.Build()
}
