package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Razorpay     RazorpayConfig
	Shiprocket   ShiprocketConfig
	Sendgrid     SendgridConfig
	Invoice      InvoiceConfig
	Shipping     ShippingConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AURELLE_APP_ENV" required:"true"`
	Port         string `envconfig:"AURELLE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AURELLE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AURELLE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AURELLE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AURELLE_DB_DSN"`
	Driver string `envconfig:"AURELLE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AURELLE_DB_HOST"`
	LegacyPort     int    `envconfig:"AURELLE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AURELLE_DB_USER"`
	LegacyPassword string `envconfig:"AURELLE_DB_PASSWORD"`
	LegacyName     string `envconfig:"AURELLE_DB_NAME"`
	LegacySSLMode  string `envconfig:"AURELLE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AURELLE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AURELLE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AURELLE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AURELLE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AURELLE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AURELLE_REDIS_ADDR"`
	Password     string        `envconfig:"AURELLE_REDIS_PASSWORD"`
	DB           int           `envconfig:"AURELLE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AURELLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AURELLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AURELLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AURELLE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AURELLE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AURELLE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AURELLE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AURELLE_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AURELLE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"AURELLE_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
	ProcessedEventTTL     time.Duration `envconfig:"AURELLE_EVENTING_PROCESSED_EVENT_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AURELLE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"AURELLE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AURELLE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	FulfillmentTopic         string `envconfig:"AURELLE_PUBSUB_FULFILLMENT_TOPIC" required:"true"`
	FulfillmentSubscription  string `envconfig:"AURELLE_PUBSUB_FULFILLMENT_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"AURELLE_PUBSUB_NOTIFICATION_TOPIC" default:"aur-notification-events"`
	NotificationSubscription string `envconfig:"AURELLE_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"AURELLE_RAZORPAY_KEY_ID"`
	KeySecret     string `envconfig:"AURELLE_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `envconfig:"AURELLE_RAZORPAY_WEBHOOK_SECRET"`
	Env           string `envconfig:"AURELLE_RAZORPAY_ENV" default:"test"`
}

// Environment returns the normalized Razorpay environment (test/live).
func (r RazorpayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(r.Env))
	if env == "" {
		return "test"
	}
	return env
}

type ShiprocketConfig struct {
	Email           string        `envconfig:"AURELLE_SHIPROCKET_EMAIL"`
	Password        string        `envconfig:"AURELLE_SHIPROCKET_PASSWORD"`
	BaseURL         string        `envconfig:"AURELLE_SHIPROCKET_BASE_URL" default:"https://apiv2.shiprocket.in"`
	PickupLocation  string        `envconfig:"AURELLE_SHIPROCKET_PICKUP_LOCATION" default:"Primary"`
	ChannelID       string        `envconfig:"AURELLE_SHIPROCKET_CHANNEL_ID"`
	RequestTimeout  time.Duration `envconfig:"AURELLE_SHIPROCKET_REQUEST_TIMEOUT" default:"20s"`
	TokenTTL        time.Duration `envconfig:"AURELLE_SHIPROCKET_TOKEN_TTL" default:"216h"`
	TrackingBaseURL string        `envconfig:"AURELLE_SHIPROCKET_TRACKING_BASE_URL" default:"https://shiprocket.co/tracking"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"AURELLE_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"AURELLE_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"AURELLE_SENDGRID_FROM_NAME" default:"Aurelle Beauty"`
}

type InvoiceConfig struct {
	GSTPercent    string `envconfig:"AURELLE_INVOICE_GST_PERCENT" default:"18"`
	SellerName    string `envconfig:"AURELLE_INVOICE_SELLER_NAME" default:"Aurelle Beauty Pvt Ltd"`
	SellerGSTIN   string `envconfig:"AURELLE_INVOICE_SELLER_GSTIN"`
	SellerAddress string `envconfig:"AURELLE_INVOICE_SELLER_ADDRESS"`
	NumberPrefix  string `envconfig:"AURELLE_INVOICE_NUMBER_PREFIX" default:"AUR-INV"`
}

type ShippingConfig struct {
	AWBMaxAutoRetries int           `envconfig:"AURELLE_SHIPPING_AWB_MAX_AUTO_RETRIES" default:"5"`
	AWBRetryBase      time.Duration `envconfig:"AURELLE_SHIPPING_AWB_RETRY_BASE" default:"2m"`
	AWBRetryCap       time.Duration `envconfig:"AURELLE_SHIPPING_AWB_RETRY_CAP" default:"1h"`
	StatusSyncBatch   int           `envconfig:"AURELLE_SHIPPING_STATUS_SYNC_BATCH" default:"100"`
}

type RateLimitConfig struct {
	TrackWindow     time.Duration `envconfig:"AURELLE_RATE_LIMIT_TRACK_WINDOW" default:"1m"`
	TrackIPLimit    int           `envconfig:"AURELLE_RATE_LIMIT_TRACK_IP_LIMIT" default:"30"`
	CheckoutWindow  time.Duration `envconfig:"AURELLE_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutIPLimit int           `envconfig:"AURELLE_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"20"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AURELLE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AURELLE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AURELLE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"AURELLE_CRON_INTERVAL" default:"5m"`
	RetentionInterval time.Duration `envconfig:"AURELLE_CRON_RETENTION_INTERVAL" default:"24h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
