package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

const (
	defaultJWTSecret     = "change-me-jwt-secret"
	defaultGatewaySecret = "change-me-gateway-secret"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Gateway   GatewayConfig
	Matching  MatchingConfig
	Sweeper   SweeperConfig
	RateLimit RateLimitConfig
	Notify    NotifyConfig
}

type AppConfig struct {
	Env                string   `envconfig:"APP_ENV" default:"dev"`
	Name               string   `envconfig:"APP_NAME" default:"buddydesk"`
	Port               string   `envconfig:"PORT" default:"8080"`
	LogLevel           string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat          string   `envconfig:"LOG_FORMAT" default:"json"`
	LogWarnStack       bool     `envconfig:"LOG_WARN_STACK" default:"false"`
	Timezone           string   `envconfig:"SERVICE_TIMEZONE" default:"Asia/Kolkata"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsProdLike() bool {
	return isProdLike(a.Env)
}

// Location resolves the timezone used to decide whether a preferred date is in the past.
func (a AppConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

type DBConfig struct {
	URL             string        `envconfig:"DATABASE_URL" default:"file:buddydesk.db?_pragma=busy_timeout(5000)"`
	ReplicaURL      string        `envconfig:"DATABASE_REPLICA_URL"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" default:"change-me-jwt-secret"`
	AdminRole string `envconfig:"ADMIN_ROLE" default:"admin"`
}

type GatewayConfig struct {
	KeyID     string        `envconfig:"GATEWAY_KEY_ID"`
	KeySecret string        `envconfig:"GATEWAY_KEY_SECRET" default:"change-me-gateway-secret"`
	Currency  string        `envconfig:"GATEWAY_CURRENCY" default:"INR"`
	Timeout   time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
}

type MatchingConfig struct {
	MaxAttempts int `envconfig:"MATCH_MAX_ATTEMPTS" default:"3"`
}

type SweeperConfig struct {
	Interval   time.Duration `envconfig:"SWEEPER_INTERVAL" default:"15m"`
	PendingTTL time.Duration `envconfig:"SWEEPER_PENDING_TTL" default:"48h"`
	LockTTL    time.Duration `envconfig:"SWEEPER_LOCK_TTL" default:"10m"`
}

type RateLimitConfig struct {
	Window time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int           `envconfig:"RATE_LIMIT_PER_WINDOW" default:"20"`
}

type NotifyConfig struct {
	FromAddress string        `envconfig:"NOTIFY_FROM" default:"buddies@buddydesk.local"`
	Timeout     time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.App.Env = strings.ToLower(strings.TrimSpace(cfg.App.Env))
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be > 0")
	}
	if cfg.Matching.MaxAttempts <= 0 {
		return fmt.Errorf("MATCH_MAX_ATTEMPTS must be > 0")
	}
	if cfg.Sweeper.PendingTTL <= 0 {
		return fmt.Errorf("SWEEPER_PENDING_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.Gateway.Currency) == "" {
		return fmt.Errorf("GATEWAY_CURRENCY must not be empty")
	}
	if _, err := cfg.App.Location(); err != nil {
		return fmt.Errorf("invalid SERVICE_TIMEZONE %q: %w", cfg.App.Timezone, err)
	}

	if isProdLike(cfg.App.Env) {
		if isEmptyOrDefault(cfg.Auth.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.Gateway.KeySecret, defaultGatewaySecret) {
			return fmt.Errorf("in prod/release GATEWAY_KEY_SECRET must be set and not default")
		}
		if strings.TrimSpace(cfg.Gateway.KeyID) == "" {
			return fmt.Errorf("in prod/release GATEWAY_KEY_ID must be set")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}
