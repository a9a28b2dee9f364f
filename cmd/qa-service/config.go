package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"classqa/internal/common/cache"
	"classqa/internal/common/db"
	commonmw "classqa/internal/common/http/middleware"
	"classqa/internal/common/mq"
	"classqa/internal/common/storage"
	"classqa/internal/llm"
	"classqa/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr            = "0.0.0.0:8000"
	defaultReadTimeout         = 5 * time.Second
	defaultWriteTimeout        = 45 * time.Second
	defaultIdleTimeout         = 60 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultDatabaseDriver      = "sqlite"
	defaultDatabaseDSN         = "file:classqa.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	defaultRosterPath          = "data/students.json"
	defaultRosterRefresh       = 30 * time.Second
	defaultCollaboratorTimeout = 30 * time.Second
	defaultEventTopic          = "classqa.question.events"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// RedisSection enables the optional cache. Without it access code lookups
// go straight to the database and rate limits are off.
type RedisSection struct {
	Enabled           bool `yaml:"enabled"`
	cache.RedisConfig `yaml:",inline"`
	AccessCodeTTL     time.Duration `yaml:"accessCodeTTL"`
}

// KafkaSection enables question lifecycle events.
type KafkaSection struct {
	Enabled        bool `yaml:"enabled"`
	mq.KafkaConfig `yaml:",inline"`
	Topic          string `yaml:"topic"`
}

// RosterConfig selects where the student roster is read from.
type RosterConfig struct {
	// Source is "file" or "minio".
	Source          string        `yaml:"source"`
	Path            string        `yaml:"path"`
	Key             string        `yaml:"key"`
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

// AuthConfig holds teacher login settings.
type AuthConfig struct {
	Passcode       string        `yaml:"passcode"`
	JWTSecret      string        `yaml:"jwtSecret"`
	JWTIssuer      string        `yaml:"jwtIssuer"`
	TokenTTL       time.Duration `yaml:"tokenTTL"`
	LoginFailTTL   time.Duration `yaml:"loginFailTTL"`
	LoginFailLimit int           `yaml:"loginFailLimit"`
}

// RateLimitConfig holds the per-IP policies for public routes.
type RateLimitConfig struct {
	Student      commonmw.RateLimitPolicy `yaml:"student"`
	Login        commonmw.RateLimitPolicy `yaml:"login"`
	CacheTimeout time.Duration            `yaml:"cacheTimeout"`
}

// AppConfig holds the qa-service configuration.
type AppConfig struct {
	Server ServerConfig  `yaml:"server"`
	Logger logger.Config `yaml:"logger"`

	Database  db.Config           `yaml:"database"`
	Redis     RedisSection        `yaml:"redis"`
	MinIO     storage.MinIOConfig `yaml:"minio"`
	Kafka     KafkaSection        `yaml:"kafka"`
	Roster    RosterConfig        `yaml:"roster"`
	OpenAI    llm.Config          `yaml:"openai"`
	Auth      AuthConfig          `yaml:"auth"`
	RateLimit RateLimitConfig     `yaml:"rateLimit"`
	CORS      commonmw.CORSConfig `yaml:"cors"`

	CollaboratorTimeout time.Duration `yaml:"collaboratorTimeout"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads the YAML file, then lets the environment (and a local
// .env file, when present) override secrets and the database location.
func loadAppConfig(path, envFile string) (*AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file failed: %w", err)
		}
	}

	var cfg AppConfig
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(&cfg)

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaultDatabaseDriver
	}
	if cfg.Database.DSN == "" {
		if cfg.Database.Driver != defaultDatabaseDriver {
			return nil, fmt.Errorf("database dsn is required")
		}
		cfg.Database.DSN = defaultDatabaseDSN
	}

	if cfg.Redis.Enabled {
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis addr is required")
		}
		applyRedisDefaults(&cfg.Redis.RedisConfig)
	}

	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("kafka brokers are required")
		}
		if cfg.Kafka.Topic == "" {
			cfg.Kafka.Topic = defaultEventTopic
		}
		if cfg.Kafka.ClientID == "" {
			cfg.Kafka.ClientID = "qa-service"
		}
	}

	cfg.Roster.Source = strings.ToLower(strings.TrimSpace(cfg.Roster.Source))
	switch cfg.Roster.Source {
	case "", "file":
		cfg.Roster.Source = "file"
		if cfg.Roster.Path == "" {
			cfg.Roster.Path = defaultRosterPath
		}
	case "minio":
		if cfg.MinIO.Bucket == "" || cfg.Roster.Key == "" {
			return nil, fmt.Errorf("minio roster needs minio.bucket and roster.key")
		}
	default:
		return nil, fmt.Errorf("unsupported roster source %q", cfg.Roster.Source)
	}
	if cfg.Roster.RefreshInterval == 0 {
		cfg.Roster.RefreshInterval = defaultRosterRefresh
	}

	if cfg.CollaboratorTimeout == 0 {
		cfg.CollaboratorTimeout = defaultCollaboratorTimeout
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("TEACHER_PASSCODE"); v != "" {
		cfg.Auth.Passcode = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("QA_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("QA_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("QA_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
}
