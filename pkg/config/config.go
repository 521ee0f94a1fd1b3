package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	OTP           OTPConfig
	Orders        OrdersConfig
	Gateway       GatewayConfig
	Notifications NotificationsConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Sendgrid      SendgridConfig
	Messaging     MessagingConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	RateLimit     RateLimitConfig
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
	Env          string   `envconfig:"HARVESTLINK_APP_ENV" required:"true"`
	Port         string   `envconfig:"HARVESTLINK_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"HARVESTLINK_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"HARVESTLINK_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"HARVESTLINK_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"HARVESTLINK_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HARVESTLINK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"HARVESTLINK_DB_DSN"`
	Driver string `envconfig:"HARVESTLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HARVESTLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"HARVESTLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HARVESTLINK_DB_USER"`
	LegacyPassword string `envconfig:"HARVESTLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"HARVESTLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"HARVESTLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns       int           `envconfig:"HARVESTLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns       int           `envconfig:"HARVESTLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime    time.Duration `envconfig:"HARVESTLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime    time.Duration `envconfig:"HARVESTLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQueryThreshold time.Duration `envconfig:"HARVESTLINK_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HARVESTLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HARVESTLINK_REDIS_ADDR"`
	Password     string        `envconfig:"HARVESTLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"HARVESTLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HARVESTLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HARVESTLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HARVESTLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HARVESTLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HARVESTLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the shared secret used to verify tokens minted by the
// profile service.
type JWTConfig struct {
	Secret            string `envconfig:"HARVESTLINK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"HARVESTLINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"HARVESTLINK_JWT_EXPIRATION_MINUTES" default:"60"`
}

// OTPConfig tunes the argon2id parameters used to hash order codes and the
// verification attempt limiter.
type OTPConfig struct {
	ArgonMemoryKB    int           `envconfig:"HARVESTLINK_OTP_ARGON_MEMORY_KB" default:"19456"`
	ArgonTime        int           `envconfig:"HARVESTLINK_OTP_ARGON_TIME" default:"2"`
	ArgonParallelism int           `envconfig:"HARVESTLINK_OTP_ARGON_PARALLELISM" default:"1"`
	ArgonSaltLen     int           `envconfig:"HARVESTLINK_OTP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int           `envconfig:"HARVESTLINK_OTP_ARGON_KEY_LEN" default:"32"`
	MaxAttempts      int           `envconfig:"HARVESTLINK_OTP_MAX_ATTEMPTS" default:"5"`
	AttemptWindow    time.Duration `envconfig:"HARVESTLINK_OTP_ATTEMPT_WINDOW" default:"15m"`
}

type OrdersConfig struct {
	PendingTTL time.Duration `envconfig:"HARVESTLINK_ORDER_PENDING_TTL" default:"48h"`
}

// GatewayConfig carries the hosted checkout credentials.
type GatewayConfig struct {
	KeyID         string        `envconfig:"HARVESTLINK_GATEWAY_KEY_ID"`
	KeySecret     string        `envconfig:"HARVESTLINK_GATEWAY_KEY_SECRET"`
	WebhookSecret string        `envconfig:"HARVESTLINK_GATEWAY_WEBHOOK_SECRET"`
	Currency      string        `envconfig:"HARVESTLINK_GATEWAY_CURRENCY" default:"INR"`
	WebhookTTL    time.Duration `envconfig:"HARVESTLINK_GATEWAY_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type NotificationsConfig struct {
	DeliveryTimeout time.Duration `envconfig:"HARVESTLINK_NOTIFY_TIMEOUT" default:"3s"`
	Disabled        bool          `envconfig:"HARVESTLINK_NOTIFY_DISABLED" default:"false"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HARVESTLINK_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"HARVESTLINK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"HARVESTLINK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"HARVESTLINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"HARVESTLINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"HARVESTLINK_GCS_BUCKET_NAME" required:"true"`
	PublicBaseURL string `envconfig:"HARVESTLINK_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
	MaxUploadMB   int    `envconfig:"HARVESTLINK_MAX_UPLOAD_MB" default:"10"`
}

type PubSubConfig struct {
	OrdersTopic           string `envconfig:"HARVESTLINK_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription    string `envconfig:"HARVESTLINK_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	PaymentsTopic         string `envconfig:"HARVESTLINK_PUBSUB_PAYMENTS_TOPIC" required:"true"`
	AnalyticsSubscription string `envconfig:"HARVESTLINK_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
	MaxOutstanding        int    `envconfig:"HARVESTLINK_PUBSUB_MAX_OUTSTANDING" default:"100"`
}

type BigQueryConfig struct {
	Dataset               string        `envconfig:"HARVESTLINK_BIGQUERY_DATASET" default:"harvestlink"`
	SettlementEventsTable string        `envconfig:"HARVESTLINK_BIGQUERY_SETTLEMENT_TABLE" default:"settlement_events"`
	AutoCreateTables      bool          `envconfig:"HARVESTLINK_BIGQUERY_AUTO_CREATE" default:"false"`
	InsertAttempts        int           `envconfig:"HARVESTLINK_BIGQUERY_INSERT_ATTEMPTS" default:"3"`
	InsertBackoff         time.Duration `envconfig:"HARVESTLINK_BIGQUERY_INSERT_BACKOFF" default:"250ms"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"HARVESTLINK_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"HARVESTLINK_SENDGRID_FROM_EMAIL" default:"orders@harvestlink.in"`
	FromName    string `envconfig:"HARVESTLINK_SENDGRID_FROM_NAME" default:"HarvestLink"`
}

// MessagingConfig points at the chat service that receives cancellation notices.
type MessagingConfig struct {
	BaseURL string        `envconfig:"HARVESTLINK_MESSAGING_BASE_URL"`
	APIKey  string        `envconfig:"HARVESTLINK_MESSAGING_API_KEY"`
	Timeout time.Duration `envconfig:"HARVESTLINK_MESSAGING_TIMEOUT" default:"5s"`
}

// OutboxConfig tunes the publisher. A failed row waits RetryBaseMS, doubled
// per attempt up to RetryMaxMS, before it is fetched again.
type OutboxConfig struct {
	BatchSize      int `envconfig:"HARVESTLINK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"HARVESTLINK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"HARVESTLINK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetryBaseMS    int `envconfig:"HARVESTLINK_OUTBOX_RETRY_BASE_MS" default:"2000"`
	RetryMaxMS     int `envconfig:"HARVESTLINK_OUTBOX_RETRY_MAX_MS" default:"300000"`
}

// RateLimitConfig throttles OTP attempts per caller and webhook traffic per source IP.
type RateLimitConfig struct {
	Window         time.Duration `envconfig:"HARVESTLINK_RATE_LIMIT_WINDOW" default:"1m"`
	OTPIPLimit     int           `envconfig:"HARVESTLINK_RATE_LIMIT_OTP_IP" default:"30"`
	OTPActorLimit  int           `envconfig:"HARVESTLINK_RATE_LIMIT_OTP_ACTOR" default:"10"`
	WebhookIPLimit int           `envconfig:"HARVESTLINK_RATE_LIMIT_WEBHOOK_IP" default:"600"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"HARVESTLINK_CRON_INTERVAL" default:"24h"`
	LockTTL                   time.Duration `envconfig:"HARVESTLINK_CRON_LOCK_TTL" default:"30m"`
	JobTimeout                time.Duration `envconfig:"HARVESTLINK_CRON_JOB_TIMEOUT" default:"10m"`
	OutboxRetentionDays       int           `envconfig:"HARVESTLINK_OUTBOX_RETENTION_DAYS" default:"30"`
	NotificationRetentionDays int           `envconfig:"HARVESTLINK_NOTIFICATION_RETENTION_DAYS" default:"90"`
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
