package config

// EnvPrefix scopes every environment variable the service reads.
const EnvPrefix = "PYSHOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "PYSHOP_APP_ENV"
	EnvPort                   = "PYSHOP_APP_PORT"
	EnvDBDSN                  = "PYSHOP_DB_DSN"
	EnvDBHost                 = "PYSHOP_DB_HOST"
	EnvDBUser                 = "PYSHOP_DB_USER"
	EnvDBName                 = "PYSHOP_DB_NAME"
	EnvRedisURL               = "PYSHOP_REDIS_URL"
	EnvJWTSecret              = "PYSHOP_JWT_SECRET"
	EnvJWTIssuer              = "PYSHOP_JWT_ISSUER"
	EnvJWTExpMins             = "PYSHOP_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "PYSHOP_REFRESH_TOKEN_TTL_MINUTES"
)

// legacyDBEnvVars are the discrete connection vars accepted when no DSN is set.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
