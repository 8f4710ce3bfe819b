// Package config loads the review bot configuration: the shared core sections
// plus database, moderation, search and session settings.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/reviewbot/core/config"
	coredatabase "github.com/m3rciful/reviewbot/core/database"
)

const (
	// SessionMemory keeps sessions in process memory.
	SessionMemory = "memory"
	// SessionRedis keeps sessions in redis.
	SessionRedis = "redis"
)

// ModerationConfig points at the moderators' chat.
type ModerationConfig struct {
	ChatID   int64  `yaml:"chat_id" envconfig:"MODERATION_CHAT_ID"`
	Language string `yaml:"language" envconfig:"MODERATION_LANGUAGE"`
	PageSize int    `yaml:"page_size" envconfig:"MODERATION_PAGE_SIZE"`
}

// SearchConfig tunes employer search. MinScore 0 accepts the best match
// whatever its score.
type SearchConfig struct {
	PageSize int `yaml:"page_size" envconfig:"SEARCH_PAGE_SIZE"`
	MinScore int `yaml:"min_score" envconfig:"SEARCH_MIN_SCORE"`
}

// RedisConfig holds the redis connection used by the redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// SessionConfig selects the session backend.
type SessionConfig struct {
	Backend string        `yaml:"backend" envconfig:"SESSION_BACKEND"`
	TTL     time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
	Redis   RedisConfig   `yaml:"redis"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database   coredatabase.Config `yaml:"database"`
	Moderation ModerationConfig    `yaml:"moderation"`
	Search     SearchConfig        `yaml:"search"`
	Session    SessionConfig       `yaml:"session"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := normalizeDatabase(&cfg.Database); err != nil {
		return err
	}

	if cfg.Moderation.ChatID == 0 {
		return fmt.Errorf("moderation.chat_id is required")
	}
	cfg.Moderation.Language = strings.ToLower(strings.TrimSpace(cfg.Moderation.Language))
	if cfg.Moderation.PageSize < 0 {
		return fmt.Errorf("moderation.page_size must be >= 0")
	}
	if cfg.Moderation.PageSize == 0 {
		cfg.Moderation.PageSize = 2
	}

	if cfg.Search.PageSize < 0 {
		return fmt.Errorf("search.page_size must be >= 0")
	}
	if cfg.Search.PageSize == 0 {
		cfg.Search.PageSize = 5
	}
	if cfg.Search.MinScore < 0 || cfg.Search.MinScore > 100 {
		return fmt.Errorf("search.min_score must be within [0,100], got %d", cfg.Search.MinScore)
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	if backend == "" {
		backend = SessionMemory
	}
	switch backend {
	case SessionMemory:
	case SessionRedis:
		if strings.TrimSpace(cfg.Session.Redis.Addr) == "" {
			return fmt.Errorf("session.redis.addr is required when session.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", cfg.Session.Backend)
	}
	cfg.Session.Backend = backend
	if cfg.Session.TTL < 0 {
		return fmt.Errorf("session.ttl must be >= 0")
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
	return nil
}

func normalizeDatabase(db *coredatabase.Config) error {
	db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
	switch db.DriverName() {
	case coredatabase.DriverPostgres:
		if db.Host == "" || db.Name == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
		if db.Port == "" {
			db.Port = "5432"
		}
		if db.SSLMode == "" {
			db.SSLMode = "disable"
		}
	case coredatabase.DriverSQLite:
		if strings.TrimSpace(db.Path) == "" {
			db.Path = "reviews.db"
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite3", db.Driver)
	}
	if db.MaxConnections < 0 {
		return fmt.Errorf("database.max_connections must be >= 0")
	}
	return nil
}
