package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "FRESHMART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "FRESHMART_APP_ENV"
	EnvPort       = "FRESHMART_APP_PORT"
	EnvDBDSN      = "FRESHMART_DB_DSN"
	EnvDBHost     = "FRESHMART_DB_HOST"
	EnvDBUser     = "FRESHMART_DB_USER"
	EnvDBName     = "FRESHMART_DB_NAME"
	EnvRedisURL   = "FRESHMART_REDIS_URL"
	EnvJWTSecret  = "FRESHMART_JWT_SECRET"
	EnvJWTIssuer  = "FRESHMART_JWT_ISSUER"
	EnvJWTExpMins = "FRESHMART_JWT_EXPIRATION_MINUTES"
)

// Delivery method names shared by the fee schedule and the checkout engine.
const (
	DeliveryMethodPickup   = "pickup"
	DeliveryMethodStandard = "standard"
	DeliveryMethodExpress  = "express"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
