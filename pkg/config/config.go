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
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Cart          CartConfig
	Cron          CronConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
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
	Env          string `envconfig:"PYSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"PYSHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PYSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PYSHOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PYSHOP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PYSHOP_DB_DSN"`
	Driver string `envconfig:"PYSHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PYSHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"PYSHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PYSHOP_DB_USER"`
	LegacyPassword string `envconfig:"PYSHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"PYSHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"PYSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PYSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PYSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PYSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PYSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PYSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PYSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"PYSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"PYSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PYSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PYSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PYSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PYSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PYSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"PYSHOP_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"PYSHOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"PYSHOP_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"PYSHOP_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PYSHOP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PYSHOP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PYSHOP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PYSHOP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PYSHOP_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"PYSHOP_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"PYSHOP_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"PYSHOP_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"PYSHOP_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"PYSHOP_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"PYSHOP_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// CartConfig holds the cart invariants and guest-session settings.
type CartConfig struct {
	MaxQtyPerItem     int           `envconfig:"PYSHOP_CART_MAX_QTY_PER_ITEM" default:"99"`
	MaxItemsPerCart   int           `envconfig:"PYSHOP_CART_MAX_ITEMS_PER_CART" default:"100"`
	SessionCookieName string        `envconfig:"PYSHOP_CART_SESSION_COOKIE" default:"pyshop_cart_session"`
	SessionTTL        time.Duration `envconfig:"PYSHOP_CART_SESSION_TTL" default:"168h"`
}

type CronConfig struct {
	ExpiryInterval   time.Duration `envconfig:"PYSHOP_CRON_CART_EXPIRY_INTERVAL" default:"15m"`
	CleanupInterval  time.Duration `envconfig:"PYSHOP_CRON_CART_CLEANUP_INTERVAL" default:"24h"`
	CleanupRetention time.Duration `envconfig:"PYSHOP_CRON_CART_CLEANUP_RETENTION" default:"720h"`
	LockTTL          time.Duration `envconfig:"PYSHOP_CRON_LOCK_TTL" default:"10m"`
	MetricsPort      string        `envconfig:"PYSHOP_CRON_METRICS_PORT" default:"9090"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"PYSHOP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PYSHOP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PYSHOP_AUTO_MIGRATE" default:"false"`
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
