package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	OTP       OTPConfig       `mapstructure:"otp"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// TrustedProxies lists the proxy addresses/CIDRs whose X-Forwarded-For is
	// believed. Empty means the peer address is the client IP.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// OTPConfig points at the delivery bot that generates and sends the code.
type OTPConfig struct {
	DeliveryURL string        `mapstructure:"delivery_url"`
	SignupKey   string        `mapstructure:"signup_key"`
	TTL         time.Duration `mapstructure:"ttl"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Policy is one sliding-window limit.
type Policy struct {
	Limit  int64         `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type RateLimitConfig struct {
	Global  Policy `mapstructure:"global"`
	Phone   Policy `mapstructure:"phone"`
	IP      Policy `mapstructure:"ip"`
	Blanket Policy `mapstructure:"blanket"`
}

type WebhookConfig struct {
	UserAgent string `mapstructure:"user_agent"`
}

type ProviderConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AdminConfig struct {
	Phones []string `mapstructure:"phones"`
}

// IsAdmin reports whether phone is one of the configured administrators.
func (a AdminConfig) IsAdmin(phone string) bool {
	for _, p := range a.Phones {
		if p == phone {
			return true
		}
	}
	return false
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is loaded first if present.
// Environment variables override file values. Prefix: OWL_.
// Nested keys use underscore: OWL_DATABASE_HOST, OWL_RATELIMIT_PHONE_LIMIT, etc.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("OWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "720h")
	v.SetDefault("jwt.issuer", "otp-wallet-ledger")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("otp.delivery_url", "")
	v.SetDefault("otp.signup_key", "")
	v.SetDefault("otp.ttl", "15m")
	v.SetDefault("otp.timeout", "10s")

	v.SetDefault("ratelimit.global.limit", 60)
	v.SetDefault("ratelimit.global.window", "600s")
	v.SetDefault("ratelimit.phone.limit", 4)
	v.SetDefault("ratelimit.phone.window", "60s")
	v.SetDefault("ratelimit.ip.limit", 5)
	v.SetDefault("ratelimit.ip.window", "60s")
	v.SetDefault("ratelimit.blanket.limit", 100)
	v.SetDefault("ratelimit.blanket.window", "60s")

	v.SetDefault("webhook.user_agent", "Coinremitter/api")

	v.SetDefault("provider.base_url", "https://api.coinremitter.com/v3/USDTTRC20")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.password", "")
	v.SetDefault("provider.timeout", "15s")

	v.SetDefault("admin.phones", []string{})
}
