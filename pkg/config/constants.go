package config

const (
	EnvPrefix = "HARVESTLINK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv        = "HARVESTLINK_APP_ENV"
	EnvPort          = "HARVESTLINK_APP_PORT"
	EnvDBDSN         = "HARVESTLINK_DB_DSN"
	EnvDBHost        = "HARVESTLINK_DB_HOST"
	EnvDBUser        = "HARVESTLINK_DB_USER"
	EnvDBName        = "HARVESTLINK_DB_NAME"
	EnvRedisURL      = "HARVESTLINK_REDIS_URL"
	EnvJWTSecret     = "HARVESTLINK_JWT_SECRET"
	EnvJWTIssuer     = "HARVESTLINK_JWT_ISSUER"
	EnvGCPProjectID  = "HARVESTLINK_GCP_PROJECT_ID"
	EnvGCSBucket     = "HARVESTLINK_GCS_BUCKET_NAME"
	EnvOrdersTopic   = "HARVESTLINK_PUBSUB_ORDERS_TOPIC"
	EnvOrdersSub     = "HARVESTLINK_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPaymentsTopic = "HARVESTLINK_PUBSUB_PAYMENTS_TOPIC"
	EnvAnalyticsSub  = "HARVESTLINK_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvPendingTTL    = "HARVESTLINK_ORDER_PENDING_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
