package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/tenant"
)

// Storage and blob drivers.
const (
	StorageSupabase = "supabase"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"

	BlobS3     = "s3"
	BlobMemory = "memory"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL   time.Duration
	SessionTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Store of record
	StorageDriver string

	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	DatabaseURL string
	SQLitePath  string
	// SeedFile is a fixture applied at startup. Ignored for supabase.
	SeedFile string

	// Redis (optional shared cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Attachments
	BlobDriver      string
	BlobS3Bucket    string
	BlobS3Region    string
	BlobS3Endpoint  string
	BlobS3PathStyle bool

	// JWT / Auth
	JWTSecret    string
	JWTAccessTTL time.Duration

	// Tenancy
	DevTenantID             string
	DevHostsEnabled         bool
	DevHostPatterns         []string
	AllowFirstStoreFallback bool
	DefaultTaxRate          float64

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 0),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL:   getEnvDuration("CACHE_TTL", 5*time.Minute),
		SessionTTL: getEnvDuration("SESSION_TTL", 30*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		StorageDriver: getEnv("STORAGE_DRIVER", StorageMemory),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "kitchenunity.db"),
		SeedFile:    getEnv("SEED_FILE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		BlobDriver:      getEnv("BLOB_DRIVER", BlobMemory),
		BlobS3Bucket:    getEnv("BLOB_S3_BUCKET", ""),
		BlobS3Region:    getEnv("BLOB_S3_REGION", "us-east-1"),
		BlobS3Endpoint:  getEnv("BLOB_S3_ENDPOINT", ""),
		BlobS3PathStyle: getEnvBool("BLOB_S3_PATH_STYLE", false),

		JWTSecret:    getEnv("JWT_SECRET", "ku-default-dev-secret-change-me"),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", time.Hour),

		DevTenantID:             getEnv("DEV_TENANT_ID", tenant.DefaultDevTenantID),
		DevHostsEnabled:         getEnvBool("DEV_HOSTS_ENABLED", true),
		DevHostPatterns:         getEnvList("DEV_HOST_PATTERNS", tenant.DefaultDevHostPatterns),
		AllowFirstStoreFallback: getEnvBool("ALLOW_FIRST_STORE_FALLBACK", false),
		DefaultTaxRate:          getEnvFloat("DEFAULT_TAX_RATE", 0),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://*.kitchenunity.com"}),
	}
}

// TenantOptions maps the tenancy keys onto resolver options.
func (c *Config) TenantOptions() tenant.Options {
	return tenant.Options{
		DevTenantID:             c.DevTenantID,
		DevHostsEnabled:         c.DevHostsEnabled,
		DevHostPatterns:         c.DevHostPatterns,
		AllowFirstStoreFallback: c.AllowFirstStoreFallback,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
