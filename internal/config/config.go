package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const DefaultVisionEndpoint = "https://vision.googleapis.com/v1/images:annotate"

type Config struct {
	Port           string `validate:"required,numeric"`
	APIKey         string
	LogLevel       string `validate:"oneof=debug info warn error"`
	MaxFileSizeMB  int64  `validate:"gt=0"`
	MaxImagePixels int64  `validate:"gte=0"`
	JPEGQuality    int    `validate:"gte=1,lte=100"`

	VisionAPIKey        string
	VisionEndpoint      string        `validate:"required,url"`
	LandmarkMaxResults  int           `validate:"gte=0"`
	ClassifierTimeout   time.Duration `validate:"gt=0"`
	ClassifierRateLimit float64       `validate:"gt=0"`
	ClassifierRateBurst int           `validate:"gt=0"`

	ExpectedLatitude    float64 `validate:"gte=-90,lte=90"`
	ExpectedLongitude   float64 `validate:"gte=-180,lte=180"`
	LocationThresholdKm float64 `validate:"gt=0"`

	RateLimitRequests int           `validate:"gt=0"`
	RateLimitWindow   time.Duration `validate:"gt=0"`
	RateLimitBlock    time.Duration `validate:"gte=0"`

	RedisAddr     string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	CORSAllowedOrigins []string `validate:"min=1"`
}

func LoadConfig(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	var err error
	config := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		APIKey:             getEnvOrDefault("API_KEY", ""),
		LogLevel:           strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		VisionAPIKey:       getEnvOrDefault("VISION_API_KEY", ""),
		VisionEndpoint:     getEnvOrDefault("VISION_ENDPOINT", DefaultVisionEndpoint),
		RedisAddr:          getEnvOrDefault("REDIS_ADDR", ""),
		RedisPassword:      getEnvOrDefault("REDIS_PASSWORD", ""),
		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
	}

	if config.MaxFileSizeMB, err = strconv.ParseInt(getEnvOrDefault("MAX_FILE_SIZE_MB", "10"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid max file size: %w", err)
	}
	if config.MaxImagePixels, err = strconv.ParseInt(getEnvOrDefault("MAX_IMAGE_PIXELS", "100000000"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid max image pixels: %w", err)
	}
	if config.JPEGQuality, err = strconv.Atoi(getEnvOrDefault("JPEG_QUALITY", "90")); err != nil {
		return nil, fmt.Errorf("invalid JPEG quality: %w", err)
	}
	if config.LandmarkMaxResults, err = strconv.Atoi(getEnvOrDefault("LANDMARK_MAX_RESULTS", "5")); err != nil {
		return nil, fmt.Errorf("invalid landmark max results: %w", err)
	}
	if config.ClassifierTimeout, err = time.ParseDuration(getEnvOrDefault("CLASSIFIER_TIMEOUT", "15s")); err != nil {
		return nil, fmt.Errorf("invalid classifier timeout: %w", err)
	}
	if config.ClassifierRateLimit, err = strconv.ParseFloat(getEnvOrDefault("CLASSIFIER_RATE_LIMIT", "10"), 64); err != nil {
		return nil, fmt.Errorf("invalid classifier rate limit: %w", err)
	}
	if config.ClassifierRateBurst, err = strconv.Atoi(getEnvOrDefault("CLASSIFIER_RATE_BURST", "20")); err != nil {
		return nil, fmt.Errorf("invalid classifier rate burst: %w", err)
	}
	if config.ExpectedLatitude, err = strconv.ParseFloat(getEnvOrDefault("EXPECTED_LATITUDE", "40.7128"), 64); err != nil {
		return nil, fmt.Errorf("invalid expected latitude: %w", err)
	}
	if config.ExpectedLongitude, err = strconv.ParseFloat(getEnvOrDefault("EXPECTED_LONGITUDE", "-74.0060"), 64); err != nil {
		return nil, fmt.Errorf("invalid expected longitude: %w", err)
	}
	if config.LocationThresholdKm, err = strconv.ParseFloat(getEnvOrDefault("LOCATION_THRESHOLD_KM", "10"), 64); err != nil {
		return nil, fmt.Errorf("invalid location threshold: %w", err)
	}
	if config.RateLimitRequests, err = strconv.Atoi(getEnvOrDefault("RATE_LIMIT_REQUESTS", "100")); err != nil {
		return nil, fmt.Errorf("invalid rate limit requests: %w", err)
	}
	if config.RateLimitWindow, err = time.ParseDuration(getEnvOrDefault("RATE_LIMIT_WINDOW", "1m")); err != nil {
		return nil, fmt.Errorf("invalid rate limit window: %w", err)
	}
	if config.RateLimitBlock, err = time.ParseDuration(getEnvOrDefault("RATE_LIMIT_BLOCK", "1h")); err != nil {
		return nil, fmt.Errorf("invalid rate limit block: %w", err)
	}
	if config.RedisDB, err = strconv.Atoi(getEnvOrDefault("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid redis db: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.VisionAPIKey == "" {
		logger.Warn("VISION_API_KEY is not set, image checks will fail until it is configured")
	}

	return config, nil
}

// Validate checks field ranges
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// MaxFileSizeBytes returns the upload size limit in bytes
func (c *Config) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
