package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	AppBaseURL       string
	HTTPAddr         string
	AuthCookieSecure bool

	SyncInterval        time.Duration
	HealthCheckInterval time.Duration
	AlertExpiryInterval time.Duration

	// TokenEncryptionSecret feeds the PBKDF2 key derivation for tokens at
	// rest. The service refuses to store a provider token without it.
	TokenEncryptionSecret string

	OTLPEndpoint string
	RedisAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Shopify     ShopifyConfig
	Facebook    FacebookConfig
	Google      GoogleConfig
	Stripe      StripeConfig
	WooCommerce WooCommerceConfig
}

// ShopifyConfig carries the Shopify partner app credentials.
type ShopifyConfig struct {
	APIKey        string
	APISecret     string
	Scopes        string
	WebhookSecret string
}

type FacebookConfig struct {
	AppID     string
	AppSecret string
	Scopes    string
}

type GoogleConfig struct {
	ServiceAccountJSON string
}

type StripeConfig struct {
	// No app credentials; merchants connect with their own restricted key.
	APIBaseURL string
}

type WooCommerceConfig struct {
	// Key-based connect; nothing global beyond the REST path prefix.
	APIPathPrefix string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:               getenv("APP_SERVICE", "pulseboard"),
		AppVersion:            getenv("APP_VERSION", "0.1.0"),
		Environment:           environment,
		AppBaseURL:            strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:8080"), "/"),
		HTTPAddr:              getenv("HTTP_ADDR", ":8080"),
		AuthCookieSecure:      authCookieSecure,
		SyncInterval:          getenvDuration("SYNC_INTERVAL", 15*time.Minute),
		HealthCheckInterval:   getenvDuration("HEALTH_CHECK_INTERVAL", time.Hour),
		AlertExpiryInterval:   getenvDuration("ALERT_EXPIRY_INTERVAL", 10*time.Minute),
		TokenEncryptionSecret: strings.TrimSpace(getenv("TOKEN_ENCRYPTION_SECRET", "")),
		OTLPEndpoint:          getenv("OTLP_ENDPOINT", "localhost:4317"),
		RedisAddr:             strings.TrimSpace(getenv("REDIS_ADDR", "")),
		DBType:                getenv("DATABASE_TYPE", "postgres"),
		DBHost:                getenv("DATABASE_HOST", "localhost"),
		DBPort:                getenv("DATABASE_PORT", "5432"),
		DBName:                getenv("DATABASE_NAME", "pulseboard"),
		DBUser:                getenv("DATABASE_USER", "postgres"),
		DBPassword:            getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:             getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:         int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:         int(getenvInt64("DATABASE_MAX_OPEN_CONN", 25)),
		DBConnMaxLifetime:     int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 3600)),
		DBConnMaxIdleTime:     int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 600)),
		Shopify: ShopifyConfig{
			APIKey:        strings.TrimSpace(getenv("SHOPIFY_API_KEY", "")),
			APISecret:     strings.TrimSpace(getenv("SHOPIFY_API_SECRET", "")),
			Scopes:        getenv("SHOPIFY_SCOPES", "read_orders,read_products,read_customers"),
			WebhookSecret: strings.TrimSpace(getenv("SHOPIFY_WEBHOOK_SECRET", "")),
		},
		Facebook: FacebookConfig{
			AppID:     strings.TrimSpace(getenv("FACEBOOK_APP_ID", "")),
			AppSecret: strings.TrimSpace(getenv("FACEBOOK_APP_SECRET", "")),
			Scopes:    getenv("FACEBOOK_SCOPES", "ads_read,read_insights"),
		},
		Google: GoogleConfig{
			ServiceAccountJSON: strings.TrimSpace(getenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")),
		},
		Stripe: StripeConfig{
			APIBaseURL: getenv("STRIPE_API_BASE_URL", "https://api.stripe.com"),
		},
		WooCommerce: WooCommerceConfig{
			APIPathPrefix: getenv("WOOCOMMERCE_API_PATH", "/wp-json/wc/v3"),
		},
	}

	return cfg
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
