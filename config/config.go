package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"arrively-api/apperr"
)

type Config struct {
	Env             string        `mapstructure:"APP_ENV"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	Database DatabaseConfig `mapstructure:",squash"`
	JWT      JWTConfig      `mapstructure:",squash"`
	Redis    RedisConfig    `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	ConnectTimeout  time.Duration `mapstructure:"DB_CONNECT_TIMEOUT"`
	MaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
}

type JWTConfig struct {
	AccessSecret  string        `mapstructure:"JWT_ACCESS_SECRET"`
	RefreshSecret string        `mapstructure:"JWT_REFRESH_SECRET"`
	AccessTTL     time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	RefreshTTL    time.Duration `mapstructure:"JWT_REFRESH_TTL"`
	Leeway        time.Duration `mapstructure:"JWT_LEEWAY"`
}

// RedisConfig is optional: an empty Addr keeps revoked tokens in the database.
type RedisConfig struct {
	Addr     string `mapstructure:"REDIS_ADDR"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SecurityConfig struct {
	BcryptCost         int      `mapstructure:"BCRYPT_COST"`
	AuthRateLimitRPM   int      `mapstructure:"AUTH_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

var defaults = map[string]any{
	"APP_ENV":              "dev",
	"HTTP_ADDR":            ":8081",
	"SHUTDOWN_TIMEOUT":     "10s",
	"DATABASE_URL":         "",
	"DB_CONNECT_TIMEOUT":   "5s",
	"DB_MAX_OPEN_CONNS":    25,
	"DB_MAX_IDLE_CONNS":    5,
	"DB_CONN_MAX_LIFETIME": "1h",
	"JWT_ACCESS_SECRET":    "",
	"JWT_REFRESH_SECRET":   "",
	"JWT_ACCESS_TTL":       "15m",
	"JWT_REFRESH_TTL":      "360h",
	"JWT_LEEWAY":           "0s",
	"REDIS_ADDR":           "",
	"REDIS_PASSWORD":       "",
	"REDIS_DB":             0,
	"BCRYPT_COST":          10,
	"AUTH_RATE_LIMIT_RPM":  60,
	"CORS_ALLOWED_ORIGINS": "*",
}

// Load reads .env (if any) and the process environment into a Config.
func Load() (*Config, error) {
	LoadDotEnvUp(6)
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	if origins := v.GetString("CORS_ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		v.Set("CORS_ALLOWED_ORIGINS", parts)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperr.Startup("config", fmt.Errorf("unmarshal: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperr.Startup("config", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET is required"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET is required"))
	}
	if c.JWT.AccessSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.JWT.Leeway < 0 {
		errs = append(errs, errors.New("JWT_LEEWAY must not be negative"))
	}
	if c.Database.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("DB_CONNECT_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}
