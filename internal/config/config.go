package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration
	BcryptCost       int

	// Refresh cookie
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string

	// Server
	Port        string
	CORSOrigins string
	Env         string
	LogLevel    string
	SentryDSN   string

	// Rate limits (requests per window per client)
	AuthRateLimit   int
	APIRateLimit    int
	RateLimitWindow time.Duration

	// Background jobs
	TokenSweepInterval time.Duration
	LogRetentionDays   int

	// Catalog
	CatalogCacheTTL     time.Duration
	CatalogCacheMaxKeys int

	// Payment gateway
	PaymentAPIURL    string
	PaymentKeyID     string
	PaymentKeySecret string
	PaymentCurrency  string
	PaymentTimeout   time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return &Config{
		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "storefront"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"), 15*time.Minute),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "168h"), 7*24*time.Hour),
		BcryptCost:       getEnvInt("BCRYPT_COST", 10),

		CookieDomain:   getEnv("COOKIE_DOMAIN", ""),
		CookieSecure:   getEnvBool("COOKIE_SECURE", true),
		CookieSameSite: strings.ToLower(getEnv("COOKIE_SAMESITE", "none")),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),

		AuthRateLimit:   getEnvInt("AUTH_RATE_LIMIT", 10),
		APIRateLimit:    getEnvInt("API_RATE_LIMIT", 100),
		RateLimitWindow: parseDuration(getEnv("RATE_LIMIT_WINDOW", "1m"), time.Minute),

		TokenSweepInterval: parseDuration(getEnv("TOKEN_SWEEP_INTERVAL", "1h"), time.Hour),
		LogRetentionDays:   getEnvInt("LOG_RETENTION_DAYS", 30),

		CatalogCacheTTL:     parseDuration(getEnv("CATALOG_CACHE_TTL", "5m"), 5*time.Minute),
		CatalogCacheMaxKeys: getEnvInt("CATALOG_CACHE_MAX_KEYS", 1000),

		PaymentAPIURL:    getEnv("PAYMENT_API_URL", "https://api.razorpay.com/v1"),
		PaymentKeyID:     getEnv("PAYMENT_KEY_ID", ""),
		PaymentKeySecret: getEnv("PAYMENT_KEY_SECRET", ""),
		PaymentCurrency:  getEnv("PAYMENT_CURRENCY", "INR"),
		PaymentTimeout:   parseDuration(getEnv("PAYMENT_TIMEOUT", "10s"), 10*time.Second),
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTAccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET environment variable is required"))
	}
	if c.JWTRefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET environment variable is required"))
	}
	if c.JWTAccessSecret != "" && c.JWTAccessSecret == c.JWTRefreshSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.DBPassword == "" {
		errs = append(errs, errors.New("DB_PASSWORD environment variable is required"))
	}
	if c.DBDriver != "postgres" && c.DBDriver != "mysql" {
		errs = append(errs, errors.New("DB_DRIVER must be postgres or mysql"))
	}
	return errors.Join(errs...)
}

func (c *Config) DSN() string {
	if c.DBDriver == "mysql" {
		return c.DBUser + ":" + c.DBPassword +
			"@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName +
			"?charset=utf8mb4&parseTime=True&loc=UTC"
	}
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
