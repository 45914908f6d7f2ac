package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DatabaseURL string // PIXELRELAY_DATABASE_URL (required)
	CatalogURL  string // PIXELRELAY_CATALOG_URL (optional, empty = catalog unavailable)
	HTTPAddr    string // PIXELRELAY_HTTP_ADDR (default ":8080")
	NATSURL     string // PIXELRELAY_NATS_URL (optional, empty = no bus ingest)
	AuthToken   string // PIXELRELAY_AUTH_TOKEN (optional, empty = auth disabled)
	SiteURL     string // PIXELRELAY_SITE_URL (default "http://localhost")

	// Conversions API endpoint overrides (tests, proxies).
	APIBaseURL string // PIXELRELAY_API_BASE_URL (default production endpoint)
	APIVersion string // PIXELRELAY_API_VERSION (default current version)

	// Diagnostic log retention.
	LogRetention       time.Duration // PIXELRELAY_LOG_RETENTION (default 720h; 0 = cleanup disabled)
	LogCleanupInterval time.Duration // PIXELRELAY_LOG_CLEANUP_INTERVAL (default 24h)
	ArchiveS3Bucket    string        // PIXELRELAY_ARCHIVE_S3_BUCKET (enables S3 archive when set)
	ArchiveS3Endpoint  string        // PIXELRELAY_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region    string        // PIXELRELAY_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Prefix    string        // PIXELRELAY_ARCHIVE_S3_PREFIX (default "pixelrelay")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:       os.Getenv("PIXELRELAY_DATABASE_URL"),
		CatalogURL:        os.Getenv("PIXELRELAY_CATALOG_URL"),
		HTTPAddr:          envOrDefault("PIXELRELAY_HTTP_ADDR", ":8080"),
		NATSURL:           os.Getenv("PIXELRELAY_NATS_URL"),
		AuthToken:         os.Getenv("PIXELRELAY_AUTH_TOKEN"),
		SiteURL:           envOrDefault("PIXELRELAY_SITE_URL", "http://localhost"),
		APIBaseURL:        os.Getenv("PIXELRELAY_API_BASE_URL"),
		APIVersion:        os.Getenv("PIXELRELAY_API_VERSION"),
		ArchiveS3Bucket:   os.Getenv("PIXELRELAY_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("PIXELRELAY_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("PIXELRELAY_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Prefix:   envOrDefault("PIXELRELAY_ARCHIVE_S3_PREFIX", "pixelrelay"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("PIXELRELAY_DATABASE_URL is required")
	}

	retention, err := durationEnv("PIXELRELAY_LOG_RETENTION", 720*time.Hour)
	if err != nil {
		return nil, err
	}
	c.LogRetention = retention

	interval, err := durationEnv("PIXELRELAY_LOG_CLEANUP_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	c.LogCleanupInterval = interval

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
