package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	GeoIPDBPath string

	StorageBackend string
	StoragePath    string
	StorageBaseURL string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueueKey      string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	SegmentAPIKey  string
	SegmentBaseURL string

	FulfillmentAPIKey           string
	FulfillmentBaseURL          string
	FulfillmentCatalogProductID int
	FulfillmentVariantIDs       []int
	FulfillmentRetailPrice      string
	FulfillmentMockups          bool

	PrintTargetWidth  int
	PrintTargetHeight int
	PrintTargetDPI    int
	PrintfileCacheTTL time.Duration

	WorkerConcurrency  int
	WorkerPollInterval time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. A .env file in the working directory is read first
// when present; real environment variables win over it.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		StoragePath:    getEnv("STORAGE_PATH", "./data/assets"),
		StorageBaseURL: os.Getenv("STORAGE_BASE_URL"),
		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    getEnv("MINIO_BUCKET", "tailor-artwork"),
		MinIOUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		QueueKey:      getEnv("QUEUE_KEY", "tailor:jobs"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		SegmentAPIKey:  os.Getenv("SEGMENT_API_KEY"),
		SegmentBaseURL: getEnv("SEGMENT_BASE_URL", "https://api.remove.bg/v1.0"),

		FulfillmentAPIKey:           os.Getenv("FULFILLMENT_API_KEY"),
		FulfillmentBaseURL:          getEnv("FULFILLMENT_BASE_URL", "https://api.printful.com"),
		FulfillmentCatalogProductID: getEnvInt("FULFILLMENT_CATALOG_PRODUCT_ID", 71),
		FulfillmentVariantIDs:       getEnvInts("FULFILLMENT_VARIANT_IDS", []int{4012, 4013, 4014}),
		FulfillmentRetailPrice:      getEnv("FULFILLMENT_RETAIL_PRICE", "29.99"),
		FulfillmentMockups:          getEnvBool("FULFILLMENT_MOCKUPS", false),

		PrintTargetWidth:  getEnvInt("PRINT_TARGET_WIDTH", 3600),
		PrintTargetHeight: getEnvInt("PRINT_TARGET_HEIGHT", 4800),
		PrintTargetDPI:    getEnvInt("PRINT_TARGET_DPI", 300),
		PrintfileCacheTTL: time.Second * time.Duration(getEnvInt("PRINTFILE_CACHE_TTL_SECONDS", 3600)),

		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval: time.Millisecond * time.Duration(getEnvInt("WORKER_POLL_MILLIS", 2000)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	switch cfg.StorageBackend {
	case "local", "minio":
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be local or minio, got %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == "local" && cfg.StorageBaseURL == "" {
		cfg.StorageBaseURL = "http://localhost:" + port + "/static"
	}
	if cfg.StorageBackend == "minio" && cfg.MinIOEndpoint == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT is required when STORAGE_BACKEND=minio")
	}
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInts(key string, fallback []int) []int {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i, err := strconv.Atoi(part)
		if err != nil {
			return fallback
		}
		out = append(out, i)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
