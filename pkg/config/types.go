package config

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Security  SecurityConfig  `yaml:"security"`
	Auth      AuthConfig      `yaml:"auth"`
	Feed      FeedConfig      `yaml:"feed"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logging   LoggingConfig   `yaml:"logging"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig holds http and storage settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	DBPath  string    `yaml:"db_path"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig holds CORS and rate limit settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	// JWTSecret signs session tokens (HS256). Required in production; tests
	// and dev fall back to a generated secret.
	JWTSecret string `yaml:"jwt_secret"`
	// TokenTTL is the token lifetime, e.g. "24h".
	TokenTTL string `yaml:"token_ttl"`
}

// FeedConfig holds live feed settings.
type FeedConfig struct {
	// SubscriberBuffer is the per-subscriber event buffer; events beyond it
	// are dropped for that subscriber (clients resync via re-open).
	SubscriberBuffer int `yaml:"subscriber_buffer"`
	Redis            struct {
		// Addr enables the Redis pub/sub bridge for multi-node fanout.
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`
}

// IngestConfig holds queueing configuration.
type IngestConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
	Workers       int `yaml:"workers"`
}

// NotifyConfig holds the Telegram side-channel settings.
type NotifyConfig struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RetentionConfig holds configuration for the periodic purge/reconcile runner.
type RetentionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	// Period is how long soft-deleted rows are kept before being purged,
	// e.g. "720h".
	Period    string `yaml:"period"`
	BatchSize int    `yaml:"batch_size"`
	DryRun    bool   `yaml:"dry_run"`
}
