package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Store       StoreConfig      `mapstructure:"store"`
	Versioning  VersioningConfig `mapstructure:"versioning"`
	Paging      PagingConfig     `mapstructure:"paging"`
	References  ReferenceConfig  `mapstructure:"references"`
	Resilience  ResilienceConfig `mapstructure:"resilience"`
	Events      EventsConfig     `mapstructure:"events"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	Tracing     TracingConfig    `mapstructure:"tracing"`
	Security    SecurityConfig   `mapstructure:"security"`
	Environment string           `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	BaseURL         string        `mapstructure:"base_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

// StoreConfig selects the pipeline store backend. Timeout bounds every call
// the service makes into the store.
type StoreConfig struct {
	Type    string        `mapstructure:"type"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type VersioningConfig struct {
	SessionWindow time.Duration `mapstructure:"session_window"`
}

type PagingConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
}

type ReferenceConfig struct {
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	BatchWait       time.Duration `mapstructure:"batch_wait"`
	Seed            SeedConfig    `mapstructure:"seed"`
}

// SeedConfig lists directory entries loaded into the in-memory reference
// directory at startup.
type SeedConfig struct {
	PipelineServices []string `mapstructure:"pipeline_services"`
	Users            []string `mapstructure:"users"`
	Teams            []string `mapstructure:"teams"`
	Tags             []string `mapstructure:"tags"`
}

type ResilienceConfig struct {
	Retry          RetryConfig          `mapstructure:"retry"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type RetryConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type EventsConfig struct {
	Type    string `mapstructure:"type"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type SecurityConfig struct {
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	RequestSize RequestSizeConfig `mapstructure:"request_size"`
	Sanitizer   SanitizerConfig   `mapstructure:"sanitizer"`
}

type SanitizerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxStringLength int  `mapstructure:"max_string_length"`
	AllowHTML       bool `mapstructure:"allow_html"`
}

type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Rate      int           `mapstructure:"rate"`
	Period    time.Duration `mapstructure:"period"`
	BurstSize int           `mapstructure:"burst_size"`
}

type RequestSizeConfig struct {
	MaxBodySize int64 `mapstructure:"max_body_size"`
}

type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	JaegerURL  string  `mapstructure:"jaeger_url"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("catalog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/catalog/")
		v.AddConfigPath("$HOME/.catalog/")
	}

	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8585)
	v.SetDefault("server.base_url", "http://localhost:8585")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type", "X-Catalog-Principal"})
	v.SetDefault("server.cors.exposed_headers", []string{"Link"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.cors.max_age", 300)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "catalog")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "30m")
	v.SetDefault("database.migrate_on_start", true)

	v.SetDefault("store.type", "postgres")
	v.SetDefault("store.timeout", "5s")

	v.SetDefault("versioning.session_window", "10m")

	v.SetDefault("paging.default_limit", 10)

	v.SetDefault("references.cache_ttl", "5m")
	v.SetDefault("references.cleanup_interval", "1m")
	v.SetDefault("references.batch_wait", "2ms")

	v.SetDefault("resilience.retry.max_retries", 3)
	v.SetDefault("resilience.retry.initial_delay", "100ms")
	v.SetDefault("resilience.retry.max_delay", "5s")
	v.SetDefault("resilience.retry.multiplier", 2.0)
	v.SetDefault("resilience.circuit_breaker.enabled", true)
	v.SetDefault("resilience.circuit_breaker.max_requests", 5)
	v.SetDefault("resilience.circuit_breaker.interval", "60s")
	v.SetDefault("resilience.circuit_breaker.timeout", "30s")
	v.SetDefault("resilience.circuit_breaker.failure_ratio", 0.6)
	v.SetDefault("resilience.circuit_breaker.min_requests", 3)

	v.SetDefault("events.type", "none")
	v.SetDefault("events.url", "nats://localhost:4222")
	v.SetDefault("events.subject", "catalog.events")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.rate", 100)
	v.SetDefault("security.rate_limit.period", "1m")
	v.SetDefault("security.rate_limit.burst_size", 10)
	v.SetDefault("security.request_size.max_body_size", 10485760)
	v.SetDefault("security.sanitizer.enabled", true)
	v.SetDefault("security.sanitizer.max_string_length", 65536)
	v.SetDefault("security.sanitizer.allow_html", true)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_url", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("environment", "development")
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Store.Type {
	case "memory":
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Port <= 0 || config.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", config.Database.Port)
		}
	default:
		return fmt.Errorf("invalid store type: %s", config.Store.Type)
	}

	if config.Store.Timeout <= 0 {
		return fmt.Errorf("store timeout must be positive")
	}

	if config.Versioning.SessionWindow < 0 {
		return fmt.Errorf("versioning session window must not be negative")
	}

	if config.Paging.DefaultLimit < 1 || config.Paging.DefaultLimit > 1000000 {
		return fmt.Errorf("invalid default page limit: %d", config.Paging.DefaultLimit)
	}

	if config.Events.Type != "none" && config.Events.Type != "nats" {
		return fmt.Errorf("invalid events type: %s", config.Events.Type)
	}
	if config.Events.Type == "nats" && config.Events.URL == "" {
		return fmt.Errorf("events URL is required for nats")
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, config.Logging.Level) {
		return fmt.Errorf("invalid logging level: %s", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid logging format: %s", config.Logging.Format)
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
