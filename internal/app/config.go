package app

import (
	"io/fs"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), a .env file, flags, or YAML
// config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ClientURL   string `default:"http://localhost:5173" usage:"Storefront frontend URL used for payment redirects" flag:"client-url"`
	Auth        AuthConfig
	Stripe      StripeConfig
	MinIO       MinIOConfig
	Redis       RedisConfig
	Checkout    CheckoutConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `usage:"HMAC secret used to verify access tokens" flag:"jwt-secret"`
}

// StripeConfig holds payment gateway credentials.
type StripeConfig struct {
	SecretKey string `usage:"Stripe secret API key" flag:"stripe-secret-key"`
	Currency  string `default:"ron" usage:"ISO currency code for checkout sessions"`
}

// MinIOConfig holds object storage settings for catalog images.
type MinIOConfig struct {
	Endpoint  string `default:"localhost:9000" usage:"MinIO endpoint (host:port)"`
	AccessKey string `usage:"MinIO access key"`
	SecretKey string `usage:"MinIO secret key"`
	Bucket    string `default:"storefront" usage:"Bucket holding catalog images"`
	UseSSL    bool   `default:"false" usage:"Use TLS for MinIO" flag:"minio-ssl"`
	PublicURL string `usage:"Public base URL for stored images" flag:"minio-public-url"`
}

// RedisConfig holds cache settings.
type RedisConfig struct {
	URL         string        `usage:"Redis URL (STOREFRONT_REDIS_URL or REDIS_URL); overrides Addr"`
	Addr        string        `default:"localhost:6379" usage:"Redis address"`
	Password    string        `usage:"Redis password"`
	DB          int           `default:"0" usage:"Redis database number"`
	Prefix      string        `default:"storefront:" usage:"Key prefix for cached entries"`
	FeaturedTTL time.Duration `default:"1h" usage:"Lifetime of the cached featured product list" flag:"featured-ttl"`
}

// CheckoutConfig controls reward coupon issuance.
type CheckoutConfig struct {
	RewardThreshold int64         `default:"20000" usage:"Minimum discounted total in minor units that earns a reward coupon"`
	RewardPercent   int           `default:"10" usage:"Discount percentage of issued reward coupons"`
	RewardValidity  time.Duration `default:"720h" usage:"Lifetime of issued reward coupons"`
}

// RateLimitConfig controls the per-client sliding window rate limiter on
// payment and coupon endpoints.
type RateLimitConfig struct {
	Max    int           `default:"10" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from a local .env file, environment
// variables, YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	case c.Auth.JWTSecret == "":
		return errors.New("JWT secret is required: set STOREFRONT_AUTH_JWT_SECRET")
	case c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0:
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
