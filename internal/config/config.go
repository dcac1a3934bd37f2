package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for prompt-arena
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Curriculum CurriculumConfig
	LLM        LLMConfig
	Recount    RecountConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host      string
	Port      int
	PublicURL string
}

// DatabaseConfig holds PostgreSQL configuration.
// An empty DSN switches persistence to the local file store.
type DatabaseConfig struct {
	DSN           string
	MigrationsDir string
	LocalDataDir  string
	MaxOpenConns  int
	MaxIdleConns  int
}

// RedisConfig holds Redis configuration for the leaderboard cache
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	CacheTTL time.Duration
}

// AuthConfig holds OAuth and session token configuration
type AuthConfig struct {
	JWTSecret          string
	SessionTTL         time.Duration
	LinuxDoClientID    string
	LinuxDoSecret      string
	LinuxDoAuthorize   string
	LinuxDoTokenURL    string
	LinuxDoUserInfoURL string
	MagicLinkTTL       time.Duration
}

// CurriculumConfig holds catalog configuration
type CurriculumConfig struct {
	Dir string
}

// LLMConfig holds model-call configuration that is not part of the
// per-request provider resolution (see resolver.go for that)
type LLMConfig struct {
	OverridesPath  string
	RequestTimeout time.Duration
	JudgeModel     string
}

// RecountConfig holds flag-recount worker configuration
type RecountConfig struct {
	Interval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "0.0.0.0"),
			Port:      getEnvAsInt("SERVER_PORT", 8080),
			PublicURL: getEnv("PUBLIC_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("DATABASE_DSN", ""),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
			LocalDataDir:  getEnv("LOCAL_DATA_DIR", "./data"),
			MaxOpenConns:  getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("LEADERBOARD_CACHE_TTL", 30*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("AUTH_JWT_SECRET", ""),
			SessionTTL:         getEnvAsDuration("AUTH_SESSION_TTL", 7*24*time.Hour),
			LinuxDoClientID:    getEnv("LINUX_DO_CLIENT_ID", ""),
			LinuxDoSecret:      getEnv("LINUX_DO_CLIENT_SECRET", ""),
			LinuxDoAuthorize:   getEnv("LINUX_DO_AUTHORIZE_URL", "https://connect.linux.do/oauth2/authorize"),
			LinuxDoTokenURL:    getEnv("LINUX_DO_TOKEN_URL", "https://connect.linux.do/oauth2/token"),
			LinuxDoUserInfoURL: getEnv("LINUX_DO_USERINFO_URL", "https://connect.linux.do/api/user"),
			MagicLinkTTL:       getEnvAsDuration("MAGIC_LINK_TTL", 15*time.Minute),
		},
		Curriculum: CurriculumConfig{
			Dir: getEnv("CURRICULUM_DIR", "./curriculum"),
		},
		LLM: LLMConfig{
			OverridesPath:  getEnv("LLM_OVERRIDES_PATH", ""),
			RequestTimeout: getEnvAsDuration("LLM_REQUEST_TIMEOUT", 60*time.Second),
			JudgeModel:     getEnv("JUDGE_MODEL", "gemini-2.5-flash"),
		},
		Recount: RecountConfig{
			Interval: getEnvAsDuration("RECOUNT_INTERVAL", 10*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.LLM.RequestTimeout <= 0 {
		return fmt.Errorf("llm request timeout must be positive")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
