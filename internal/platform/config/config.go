package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	OAuth     OAuthConfig     `mapstructure:"oauth"`
	Features  FeaturesConfig  `mapstructure:"features"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Admin     AdminConfig     `mapstructure:"admin"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type WebhooksConfig struct {
	// Delivery defaults. Per-configuration policy (timeout, retry budget,
	// rate limit) lives on the webhook configuration row itself.
	BaseRetryDelay time.Duration `mapstructure:"base_retry_delay"`
	MaxRetryDelay  time.Duration `mapstructure:"max_retry_delay"`
	UserAgent      string        `mapstructure:"user_agent"`
	WorkerCount    int           `mapstructure:"worker_count"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

type OAuthConfig struct {
	// Default token endpoints keyed by region, used when a webhook
	// configuration carries no token_api_url of its own.
	TokenURLs    map[string]string `mapstructure:"token_urls"`
	FetchTimeout time.Duration     `mapstructure:"fetch_timeout"`
	ExpiryBuffer time.Duration     `mapstructure:"expiry_buffer"`
}

type FeaturesConfig struct {
	LearningTimeEnrichment bool `mapstructure:"learning_time_enrichment"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

type RateLimitConfig struct {
	APIReadPerMinute  int `mapstructure:"api_read_per_minute"`
	APIWritePerMinute int `mapstructure:"api_write_per_minute"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("webhooks.base_retry_delay", "30s")
	viper.SetDefault("webhooks.max_retry_delay", "1h")
	viper.SetDefault("webhooks.user_agent", "OpenEdX-Enterprise-Webhook/1.0")
	viper.SetDefault("webhooks.worker_count", 4)
	viper.SetDefault("webhooks.sweep_interval", "1m")
	viper.SetDefault("oauth.fetch_timeout", "10s")
	viper.SetDefault("oauth.expiry_buffer", "60s")
	viper.SetDefault("jwt.access_token_ttl", "1h")
	viper.SetDefault("rate_limit.api_read_per_minute", 1000)
	viper.SetDefault("rate_limit.api_write_per_minute", 100)
}
