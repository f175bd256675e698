package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment override, e.g. SUPERMOCK_SERVER_ADDRESS.
const EnvPrefix = "SUPERMOCK"

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

type Config struct {
	DevMode bool `yaml:"dev_mode" split_words:"true"`

	Server struct {
		Address         string        `yaml:"address" split_words:"true"`
		ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
		WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	} `yaml:"server" split_words:"true"`

	Signal struct {
		Path          string        `yaml:"path" split_words:"true"`
		PingInterval  time.Duration `yaml:"ping_interval" split_words:"true"`
		PongTimeout   time.Duration `yaml:"pong_timeout" split_words:"true"`
		WriteTimeout  time.Duration `yaml:"write_timeout" split_words:"true"`
		SendBuffer    int           `yaml:"send_buffer" split_words:"true"`
		MaxChatLength int           `yaml:"max_chat_length" split_words:"true"`
		MaxNameLength int           `yaml:"max_name_length" split_words:"true"`
	} `yaml:"signal" split_words:"true"`

	Storage struct {
		Driver     string `yaml:"driver" split_words:"true"` // memory | sqlite
		SQLitePath string `yaml:"sqlite_path" split_words:"true"`
	} `yaml:"storage" split_words:"true"`

	Redis struct {
		Enabled  bool   `yaml:"enabled" split_words:"true"`
		Address  string `yaml:"address" split_words:"true"`
		Password string `yaml:"password" split_words:"true"`
		DB       int    `yaml:"db" split_words:"true"`
		PoolSize int    `yaml:"pool_size" split_words:"true"`
		Channel  string `yaml:"channel" split_words:"true"`
	} `yaml:"redis" split_words:"true"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret" split_words:"true"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl" split_words:"true"`
		AllowedOrigins []string      `yaml:"allowed_origins" split_words:"true"`
	} `yaml:"auth" split_words:"true"`

	Matching struct {
		SweepInterval time.Duration `yaml:"sweep_interval" split_words:"true"`
		// waiting entries whose slot is older than this are expired by the reaper
		StaleAfter time.Duration `yaml:"stale_after" split_words:"true"`
		LockTTL    time.Duration `yaml:"lock_ttl" split_words:"true"`
	} `yaml:"matching" split_words:"true"`

	Video struct {
		Provider        string        `yaml:"provider" split_words:"true"` // local | http
		BaseURL         string        `yaml:"base_url" split_words:"true"`
		APIURL          string        `yaml:"api_url" split_words:"true"`
		APIKey          string        `yaml:"api_key" split_words:"true"`
		AllowedHosts    []string      `yaml:"allowed_hosts" split_words:"true"`
		Timeout         time.Duration `yaml:"timeout" split_words:"true"`
		DurationMinutes int           `yaml:"duration_minutes" split_words:"true"`
		StatusCacheTTL  time.Duration `yaml:"status_cache_ttl" split_words:"true"`
		RetryAttempts   int           `yaml:"retry_attempts" split_words:"true"`
		BreakerFailures int           `yaml:"breaker_failures" split_words:"true"`
		BreakerReset    time.Duration `yaml:"breaker_reset" split_words:"true"`
	} `yaml:"video" split_words:"true"`

	Notifications struct {
		TTL       time.Duration `yaml:"ttl" split_words:"true"`
		Workers   int           `yaml:"workers" split_words:"true"`
		QueueSize int           `yaml:"queue_size" split_words:"true"`
	} `yaml:"notifications" split_words:"true"`

	WebRTC struct {
		ICEServers []ICEServer `yaml:"ice_servers" ignored:"true"`
	} `yaml:"webrtc" split_words:"true"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled" split_words:"true"`
	} `yaml:"monitoring" split_words:"true"`

	Tracing struct {
		Enabled        bool    `yaml:"enabled" split_words:"true"`
		ServiceName    string  `yaml:"service_name" split_words:"true"`
		JaegerEndpoint string  `yaml:"jaeger_endpoint" split_words:"true"`
		SampleRate     float64 `yaml:"sample_rate" split_words:"true"`
	} `yaml:"tracing" split_words:"true"`

	Logging struct {
		Level  string `yaml:"level" split_words:"true"`
		Format string `yaml:"format" split_words:"true"`
	} `yaml:"logging" split_words:"true"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled" split_words:"true"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second" split_words:"true"`
			Burst             int     `yaml:"burst" split_words:"true"`
			MaxConcurrent     int     `yaml:"max_concurrent" split_words:"true"` // global concurrent HTTP requests
		} `yaml:"http" split_words:"true"`

		WebSocket struct {
			MessagesPerSecond   float64 `yaml:"messages_per_second" split_words:"true"`
			Burst               int     `yaml:"burst" split_words:"true"`
			MaxMessageSizeBytes int64   `yaml:"max_message_size_bytes" split_words:"true"`
		} `yaml:"websocket" split_words:"true"`
	} `yaml:"rate_limiting" split_words:"true"`
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
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Signal
	if c.Signal.Path == "" {
		return fmt.Errorf("signal.path must not be empty")
	}
	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= c.Signal.PingInterval {
		return fmt.Errorf("signal.pong_timeout must be > signal.ping_interval")
	}
	if c.Signal.SendBuffer <= 0 {
		return fmt.Errorf("signal.send_buffer must be > 0")
	}
	if c.Signal.MaxChatLength <= 0 || c.Signal.MaxNameLength <= 0 {
		return fmt.Errorf("signal.max_chat_length and signal.max_name_length must be > 0")
	}

	// Storage
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path must not be empty when storage.driver=sqlite")
		}
	default:
		return fmt.Errorf("storage.driver must be memory or sqlite, got %q", c.Storage.Driver)
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
		if c.Redis.Channel == "" {
			return fmt.Errorf("redis.channel must not be empty when redis.enabled=true")
		}
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	// Matching
	if c.Matching.SweepInterval < time.Second {
		return fmt.Errorf("matching.sweep_interval must be >= 1s")
	}
	if c.Matching.StaleAfter < 0 {
		return fmt.Errorf("matching.stale_after must be >= 0")
	}
	if c.Matching.LockTTL <= 0 {
		return fmt.Errorf("matching.lock_ttl must be > 0")
	}

	// Video
	switch c.Video.Provider {
	case "local":
		if c.Video.BaseURL == "" {
			return fmt.Errorf("video.base_url must not be empty when video.provider=local")
		}
	case "http":
		if c.Video.APIURL == "" {
			return fmt.Errorf("video.api_url must not be empty when video.provider=http")
		}
	default:
		return fmt.Errorf("video.provider must be local or http, got %q", c.Video.Provider)
	}
	if c.Video.Timeout <= 0 {
		return fmt.Errorf("video.timeout must be > 0")
	}
	if c.Video.DurationMinutes <= 0 {
		return fmt.Errorf("video.duration_minutes must be > 0")
	}
	if c.Video.RetryAttempts < 1 {
		return fmt.Errorf("video.retry_attempts must be >= 1")
	}
	if c.Video.BreakerFailures <= 0 || c.Video.BreakerReset <= 0 {
		return fmt.Errorf("video.breaker_failures and video.breaker_reset must be > 0")
	}

	// Notifications
	if c.Notifications.TTL <= 0 {
		return fmt.Errorf("notifications.ttl must be > 0")
	}
	if c.Notifications.Workers < 0 {
		return fmt.Errorf("notifications.workers must be >= 0")
	}
	if c.Notifications.Workers > 0 && c.Notifications.QueueSize <= 0 {
		return fmt.Errorf("notifications.queue_size must be > 0 when workers > 0")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerEndpoint == "" {
			return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
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
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxMessageSizeBytes < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_message_size_bytes must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides overwrites fields for which a SUPERMOCK_* variable is set.
// Unset variables leave the current value untouched.
func (c *Config) ApplyEnvOverrides() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to apply env overrides: %w", err)
	}
	return nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Signal.Path = "/ws"
	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.WriteTimeout = 10 * time.Second
	cfg.Signal.SendBuffer = 256
	cfg.Signal.MaxChatLength = 2000
	cfg.Signal.MaxNameLength = 64

	cfg.Storage.Driver = "memory"
	cfg.Storage.SQLitePath = "supermock.db"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.Channel = "supermock:events"

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 24 * time.Hour
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.Matching.SweepInterval = 5 * time.Minute
	cfg.Matching.StaleAfter = 30 * time.Minute
	cfg.Matching.LockTTL = 2 * time.Minute

	cfg.Video.Provider = "local"
	cfg.Video.BaseURL = "https://meet.jit.si"
	cfg.Video.AllowedHosts = []string{"meet.jit.si", "meet.google.com", "zoom.us"}
	cfg.Video.Timeout = 5 * time.Second
	cfg.Video.DurationMinutes = 60
	cfg.Video.StatusCacheTTL = time.Minute
	cfg.Video.RetryAttempts = 2
	cfg.Video.BreakerFailures = 5
	cfg.Video.BreakerReset = 30 * time.Second

	cfg.Notifications.TTL = 72 * time.Hour
	cfg.Notifications.Workers = 2
	cfg.Notifications.QueueSize = 1024

	cfg.WebRTC.ICEServers = []ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	}

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "supermock"
	cfg.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 20
	cfg.RateLimiting.WebSocket.Burst = 40
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 64 * 1024

	return cfg
}
