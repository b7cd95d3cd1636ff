package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	StorageBackendFile = "file"
	StorageBackendS3   = "s3"
)

type Config struct {
	Server struct {
		Address           string        `yaml:"address"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		ReadTimeout       time.Duration `yaml:"read_timeout"`
		WriteTimeout      time.Duration `yaml:"write_timeout"`
		// LongRequestTimeout replaces the read and write timeouts on
		// uploads, content downloads and platform publishing.
		LongRequestTimeout time.Duration `yaml:"long_request_timeout"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
		InstanceID         string        `yaml:"instance_id"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret         string        `yaml:"jwt_secret"`
		AccessTokenTTL    time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL   time.Duration `yaml:"refresh_token_ttl"`
		AllowedOrigins    []string      `yaml:"allowed_origins"`
		AdminPasswordHash string        `yaml:"admin_password_hash"`
		BootstrapAdmins   []string      `yaml:"bootstrap_admins"`
		BcryptCost        int           `yaml:"bcrypt_cost"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		// AdminVerify throttles the admin password check per client IP.
		AdminVerify struct {
			AttemptsPerMinute int `yaml:"attempts_per_minute"`
			Burst             int `yaml:"burst"`
		} `yaml:"admin_verify"`
	} `yaml:"rate_limiting"`

	Storage struct {
		Backend             string   `yaml:"backend"`
		Path                string   `yaml:"path"`
		Bucket              string   `yaml:"bucket"`
		Prefix              string   `yaml:"prefix"`
		Region              string   `yaml:"region"`
		MaxUploadBytes      int64    `yaml:"max_upload_bytes"`
		AllowedContentTypes []string `yaml:"allowed_content_types"`
	} `yaml:"storage"`

	Platform struct {
		Enabled       bool          `yaml:"enabled"`
		ClientID      string        `yaml:"client_id"`
		ClientSecret  string        `yaml:"client_secret"`
		RefreshToken  string        `yaml:"refresh_token"`
		TokenURL      string        `yaml:"token_url"`
		Endpoint      string        `yaml:"endpoint"`
		PrivacyStatus string        `yaml:"privacy_status"`
		CategoryID    string        `yaml:"category_id"`
		ChunkSize     int           `yaml:"chunk_size"`
		Timeout       time.Duration `yaml:"timeout"`

		Retry struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			InitialDelay time.Duration `yaml:"initial_delay"`
			MaxDelay     time.Duration `yaml:"max_delay"`
		} `yaml:"retry"`

		CircuitBreaker struct {
			FailureThreshold int           `yaml:"failure_threshold"`
			SuccessThreshold int           `yaml:"success_threshold"`
			Timeout          time.Duration `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"platform"`

	Realtime struct {
		PingInterval        time.Duration `yaml:"ping_interval"`
		PongTimeout         time.Duration `yaml:"pong_timeout"`
		WriteTimeout        time.Duration `yaml:"write_timeout"`
		MaxSubscriptions    int           `yaml:"max_subscriptions"`
		SubscriberBuffer    int           `yaml:"subscriber_buffer"`
		MaxMessageSizeBytes int64         `yaml:"max_message_size_bytes"`
	} `yaml:"realtime"`

	Cache struct {
		ThemeTTL time.Duration `yaml:"theme_ttl"`
		PageTTL  time.Duration `yaml:"page_ttl"`
	} `yaml:"cache"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ReadHeaderTimeout <= 0 || c.Server.ReadHeaderTimeout > c.Server.ReadTimeout {
		return fmt.Errorf("server.read_header_timeout must be > 0 and <= server.read_timeout")
	}
	if c.Server.LongRequestTimeout < c.Server.ReadTimeout || c.Server.LongRequestTimeout < c.Server.WriteTimeout {
		return fmt.Errorf("server.long_request_timeout must be >= server.read_timeout and server.write_timeout")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl must be > 0")
	}
	if c.Auth.RefreshTokenTTL < c.Auth.AccessTokenTTL {
		return fmt.Errorf("auth.refresh_token_ttl must be >= auth.access_token_ttl")
	}
	if len(c.Auth.AllowedOrigins) == 0 {
		return fmt.Errorf("auth.allowed_origins must not be empty")
	}
	for _, origin := range c.Auth.AllowedOrigins {
		if origin == "" {
			return fmt.Errorf("auth.allowed_origins must not contain empty entries")
		}
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}
	if c.Auth.AdminPasswordHash != "" && !strings.HasPrefix(c.Auth.AdminPasswordHash, "$2") {
		return fmt.Errorf("auth.admin_password_hash must be a bcrypt hash")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}
	if c.RateLimiting.AdminVerify.AttemptsPerMinute <= 0 {
		return fmt.Errorf("rate_limiting.admin_verify.attempts_per_minute must be > 0")
	}
	if c.RateLimiting.AdminVerify.Burst <= 0 {
		return fmt.Errorf("rate_limiting.admin_verify.burst must be > 0")
	}

	// Storage
	switch c.Storage.Backend {
	case StorageBackendFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path must not be empty for the file backend")
		}
	case StorageBackendS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must not be empty for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q", StorageBackendFile, StorageBackendS3)
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("storage.max_upload_bytes must be > 0")
	}
	if len(c.Storage.AllowedContentTypes) == 0 {
		return fmt.Errorf("storage.allowed_content_types must not be empty")
	}

	// Platform
	if c.Platform.Enabled {
		if c.Platform.ClientID == "" || c.Platform.ClientSecret == "" {
			return fmt.Errorf("platform.client_id and platform.client_secret are required when platform.enabled=true")
		}
		if c.Platform.RefreshToken == "" {
			return fmt.Errorf("platform.refresh_token is required when platform.enabled=true")
		}
		switch c.Platform.PrivacyStatus {
		case "public", "unlisted", "private":
		default:
			return fmt.Errorf("platform.privacy_status must be public, unlisted or private")
		}
	}
	if c.Platform.ChunkSize < 0 {
		return fmt.Errorf("platform.chunk_size must be >= 0")
	}
	if c.Platform.Timeout <= 0 {
		return fmt.Errorf("platform.timeout must be > 0")
	}
	if c.Platform.Enabled && c.Server.LongRequestTimeout <= c.Platform.Timeout {
		return fmt.Errorf("server.long_request_timeout must be > platform.timeout so publish responses reach the client")
	}
	if c.Platform.Retry.MaxAttempts < 0 {
		return fmt.Errorf("platform.retry.max_attempts must be >= 0")
	}
	if c.Platform.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("platform.circuit_breaker.failure_threshold must be > 0")
	}

	// Realtime
	if c.Realtime.PingInterval <= 0 {
		return fmt.Errorf("realtime.ping_interval must be > 0")
	}
	if c.Realtime.PongTimeout <= c.Realtime.PingInterval {
		return fmt.Errorf("realtime.pong_timeout must be > realtime.ping_interval")
	}
	if c.Realtime.WriteTimeout <= 0 {
		return fmt.Errorf("realtime.write_timeout must be > 0")
	}
	if c.Realtime.MaxSubscriptions <= 0 {
		return fmt.Errorf("realtime.max_subscriptions must be > 0")
	}
	if c.Realtime.SubscriberBuffer <= 0 {
		return fmt.Errorf("realtime.subscriber_buffer must be > 0")
	}

	// Cache
	if c.Cache.ThemeTTL <= 0 || c.Cache.PageTTL <= 0 {
		return fmt.Errorf("cache.theme_ttl and cache.page_ttl must be > 0")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFirst tries each path in order and returns the first configuration that
// loads. When none of the files exist the defaults are used.
func LoadFirst(paths ...string) (*Config, string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := Load(path)
		if err != nil {
			return nil, path, err
		}
		return cfg, path, nil
	}

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, "", nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadHeaderTimeout = 10 * time.Second
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 60 * time.Second
	cfg.Server.LongRequestTimeout = 30 * time.Minute
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour // 7 days
	cfg.Auth.AllowedOrigins = []string{"*"}
	cfg.Auth.BcryptCost = 10

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.AdminVerify.AttemptsPerMinute = 5
	cfg.RateLimiting.AdminVerify.Burst = 5

	cfg.Storage.Backend = StorageBackendFile
	cfg.Storage.Path = "./data/objects"
	cfg.Storage.Region = "us-east-1"
	cfg.Storage.MaxUploadBytes = 256 << 20 // 256 MiB
	cfg.Storage.AllowedContentTypes = []string{
		"video/mp4",
		"video/webm",
		"video/quicktime",
		"video/x-matroska",
	}

	cfg.Platform.Enabled = false
	cfg.Platform.PrivacyStatus = "unlisted"
	cfg.Platform.CategoryID = "22"
	cfg.Platform.ChunkSize = 8 << 20
	cfg.Platform.Timeout = 10 * time.Minute
	cfg.Platform.Retry.MaxAttempts = 3
	cfg.Platform.Retry.InitialDelay = 500 * time.Millisecond
	cfg.Platform.Retry.MaxDelay = 10 * time.Second
	cfg.Platform.CircuitBreaker.FailureThreshold = 5
	cfg.Platform.CircuitBreaker.SuccessThreshold = 1
	cfg.Platform.CircuitBreaker.Timeout = 60 * time.Second

	cfg.Realtime.PingInterval = 30 * time.Second
	cfg.Realtime.PongTimeout = 60 * time.Second
	cfg.Realtime.WriteTimeout = 10 * time.Second
	cfg.Realtime.MaxSubscriptions = 32
	cfg.Realtime.SubscriberBuffer = 64
	cfg.Realtime.MaxMessageSizeBytes = 16 * 1024

	cfg.Cache.ThemeTTL = 30 * time.Second
	cfg.Cache.PageTTL = 30 * time.Second

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Monitoring.PrometheusEnabled = true

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("REELGATE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("REELGATE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("REELGATE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if hash := os.Getenv("REELGATE_ADMIN_PASSWORD_HASH"); hash != "" {
		c.Auth.AdminPasswordHash = hash
	}
	if addr := os.Getenv("REELGATE_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
	if pw := os.Getenv("REELGATE_REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
	if path := os.Getenv("REELGATE_STORAGE_PATH"); path != "" {
		c.Storage.Path = path
	}
	if id := os.Getenv("REELGATE_PLATFORM_CLIENT_ID"); id != "" {
		c.Platform.ClientID = id
	}
	if secret := os.Getenv("REELGATE_PLATFORM_CLIENT_SECRET"); secret != "" {
		c.Platform.ClientSecret = secret
	}
	if token := os.Getenv("REELGATE_PLATFORM_REFRESH_TOKEN"); token != "" {
		c.Platform.RefreshToken = token
	}
	if enabled := os.Getenv("REELGATE_PLATFORM_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			c.Platform.Enabled = v
		}
	}
}
