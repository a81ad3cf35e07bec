package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Mongo     MongoConfig
	Email     EmailConfig
	Assistant AssistantConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	WarnWindow          time.Duration
	HeartbeatInterval   time.Duration
	RotationLatency     time.Duration
	ThrottleMaxFailures int
	ThrottleCooldown    time.Duration
	ThrottleDecay       bool
	PasswordScheme      string
	RecoveryTTL         time.Duration
	TimingDelayBaseMs   int
	TimingDelayRandomMs int
	LoginRequestsPerMin int
}

type StorageConfig struct {
	Driver string
	Path   string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type MongoConfig struct {
	URI      string
	Database string
}

type EmailConfig struct {
	Driver      string // "log" or "ses"
	AWSRegion   string
	FromAddress string
}

type AssistantConfig struct {
	APIKey string
	Model  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			AccessTokenTTL:      getEnvAsDuration("ACCESS_TOKEN_TTL", 5*time.Minute),
			RefreshTokenTTL:     getEnvAsDuration("REFRESH_TOKEN_TTL", 24*time.Hour),
			WarnWindow:          getEnvAsDuration("WARN_WINDOW", 1*time.Minute),
			HeartbeatInterval:   getEnvAsDuration("HEARTBEAT_INTERVAL", 10*time.Second),
			RotationLatency:     getEnvAsDuration("ROTATION_LATENCY", 300*time.Millisecond),
			ThrottleMaxFailures: getEnvAsInt("THROTTLE_MAX_FAILURES", 5),
			ThrottleCooldown:    getEnvAsDuration("THROTTLE_COOLDOWN", 30*time.Second),
			ThrottleDecay:       getEnvAsBool("THROTTLE_DECAY", false),
			PasswordScheme:      strings.ToLower(getEnv("PASSWORD_SCHEME", "argon2id")),
			RecoveryTTL:         getEnvAsDuration("RECOVERY_TTL", 30*time.Minute),
			TimingDelayBaseMs:   getEnvAsInt("TIMING_DELAY_BASE_MS", 150),
			TimingDelayRandomMs: getEnvAsInt("TIMING_DELAY_RANDOM_MS", 100),
			LoginRequestsPerMin: getEnvAsInt("LOGIN_REQUESTS_PER_MINUTE", 20),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageFile)),
			Path:   getEnv("STORAGE_PATH", "data/uniplus.json"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "uniplus"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        int32(getEnvAsInt("DB_MAX_CONNS", 5)),
			MinConns:        int32(getEnvAsInt("DB_MIN_CONNS", 1)),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", ""),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "uniplus"),
		},
		Email: EmailConfig{
			Driver:      strings.ToLower(getEnv("EMAIL_DRIVER", "log")),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM", "no-reply@bvm.edu"),
		},
		Assistant: AssistantConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	a := c.Auth
	if a.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	if a.WarnWindow <= 0 || a.WarnWindow >= a.AccessTokenTTL {
		return fmt.Errorf("WARN_WINDOW must be positive and shorter than ACCESS_TOKEN_TTL")
	}
	if a.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if a.HeartbeatInterval >= a.WarnWindow {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be shorter than WARN_WINDOW")
	}
	if a.RotationLatency < 0 {
		return fmt.Errorf("ROTATION_LATENCY cannot be negative")
	}
	if a.ThrottleMaxFailures <= 0 {
		return fmt.Errorf("THROTTLE_MAX_FAILURES must be positive")
	}
	if a.ThrottleCooldown <= 0 {
		return fmt.Errorf("THROTTLE_COOLDOWN must be positive")
	}
	switch a.PasswordScheme {
	case "argon2id", "legacy":
	default:
		return fmt.Errorf("PASSWORD_SCHEME must be argon2id or legacy (got %q)", a.PasswordScheme)
	}

	switch c.Storage.Driver {
	case StorageMemory, StorageFile, StorageRedis, StorageMongo:
	case StoragePostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	switch c.Email.Driver {
	case "log", "ses":
	default:
		return fmt.Errorf("unknown EMAIL_DRIVER %q", c.Email.Driver)
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	items := strings.Split(value, ",")
	for i, item := range items {
		items[i] = strings.TrimSpace(item)
	}
	return items
}

func parseAllowedOrigins(env string) []string {
	if origins := splitList(getEnv("ALLOWED_ORIGINS", "")); len(origins) > 0 {
		return origins
	}

	if env == "production" {
		return []string{}
	}

	// Development: the SPA dev servers
	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
