package config

const (
	EnvPrefix = "AGRICONNECT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv  = "AGRICONNECT_APP_ENV"
	EnvPort    = "AGRICONNECT_APP_PORT"
	EnvDBDSN   = "AGRICONNECT_DB_DSN"
	EnvDBHost  = "AGRICONNECT_DB_HOST"
	EnvDBPort  = "AGRICONNECT_DB_PORT"
	EnvDBUser  = "AGRICONNECT_DB_USER"
	EnvDBName  = "AGRICONNECT_DB_NAME"
	EnvDBPass  = "AGRICONNECT_DB_PASSWORD"
	EnvJWTKey  = "AGRICONNECT_JWT_SECRET"
	EnvRedis   = "AGRICONNECT_REDIS_URL"
	EnvRzpKey  = "AGRICONNECT_RAZORPAY_KEY_ID"
	EnvRzpSec  = "AGRICONNECT_RAZORPAY_KEY_SECRET"
)

var composedDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
