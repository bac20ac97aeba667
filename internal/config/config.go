package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAccessTokenTTLMinutes applies when AUTH_ACCESS_TOKEN_TTL_MINUTES is unset.
const DefaultAccessTokenTTLMinutes = 15

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Realtime RealtimeConfig
	Tasks    TasksConfig
	Notify   NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSAllowOrigins      string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr                 string
	Password             string
	DB                   int
	PrincipalCacheTTLSec int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	JWTAlgorithm          string
	AccessTokenTTLMinutes int
}

// RealtimeConfig tunes the chat websocket endpoint.
type RealtimeConfig struct {
	SendBuffer          int
	WriteTimeoutSeconds int
	MaxMessageBytes     int64
	RequireToken        bool
}

// TasksConfig carries validation and pagination limits of the task endpoints.
type TasksConfig struct {
	TitleMaxLength   int
	PageDefaultLimit int
	PageMaxLimit     int
}

// NotificationConfig controls the push notification stub fed by task events.
type NotificationConfig struct {
	PushEnabled bool
	PushTopic   string
}

var supportedAlgorithms = map[string]struct{}{
	"HS256": {},
	"HS384": {},
	"HS512": {},
}

// Load reads configuration from environment variables, applying defaults where possible.
// Auth settings are validated strictly since tokens cannot be issued without them.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	auth, err := loadAuth()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "task-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSAllowOrigins:      getEnv("CORS_ALLOW_ORIGINS", "*"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:                 getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:             os.Getenv("REDIS_PASSWORD"),
			DB:                   redisDB,
			PrincipalCacheTTLSec: getEnvAsInt("PRINCIPAL_CACHE_TTL_SECONDS", 60),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: auth,
		Realtime: RealtimeConfig{
			SendBuffer:          getEnvAsInt("REALTIME_SEND_BUFFER", 256),
			WriteTimeoutSeconds: getEnvAsInt("REALTIME_WRITE_TIMEOUT_SECONDS", 10),
			MaxMessageBytes:     int64(getEnvAsInt("REALTIME_MAX_MESSAGE_BYTES", 4096)),
			RequireToken:        getEnvAsBool("REALTIME_REQUIRE_TOKEN", false),
		},
		Tasks: TasksConfig{
			TitleMaxLength:   getEnvAsInt("TASK_TITLE_MAX_LENGTH", 255),
			PageDefaultLimit: getEnvAsInt("TASK_PAGE_DEFAULT_LIMIT", 10),
			PageMaxLimit:     getEnvAsInt("TASK_PAGE_MAX_LIMIT", 100),
		},
		Notify: NotificationConfig{
			PushEnabled: getEnvAsBool("NOTIFY_PUSH_ENABLED", false),
			PushTopic:   getEnv("NOTIFY_PUSH_TOPIC", "tasks"),
		},
	}

	return cfg, nil
}

func loadAuth() (AuthConfig, error) {
	secret := os.Getenv("AUTH_JWT_SECRET")
	if secret == "" {
		return AuthConfig{}, fmt.Errorf("AUTH_JWT_SECRET environment variable is required")
	}

	algorithm := strings.ToUpper(getEnv("AUTH_JWT_ALGORITHM", "HS256"))
	if _, ok := supportedAlgorithms[algorithm]; !ok {
		return AuthConfig{}, fmt.Errorf("unsupported AUTH_JWT_ALGORITHM %q", algorithm)
	}

	ttl := DefaultAccessTokenTTLMinutes
	if raw, ok := os.LookupEnv("AUTH_ACCESS_TOKEN_TTL_MINUTES"); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return AuthConfig{}, fmt.Errorf("invalid AUTH_ACCESS_TOKEN_TTL_MINUTES: %w", err)
		}
		if parsed <= 0 {
			return AuthConfig{}, fmt.Errorf("AUTH_ACCESS_TOKEN_TTL_MINUTES must be positive, got %d", parsed)
		}
		ttl = parsed
	}

	return AuthConfig{
		JWTSecret:             secret,
		JWTAlgorithm:          algorithm,
		AccessTokenTTLMinutes: ttl,
	}, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the default validity of issued access tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// PrincipalCacheTTL returns how long resolved principals stay cached; zero disables caching.
func (r RedisConfig) PrincipalCacheTTL() time.Duration {
	if r.PrincipalCacheTTLSec <= 0 {
		return 0
	}
	return time.Duration(r.PrincipalCacheTTLSec) * time.Second
}

// WriteTimeout returns the per-frame write deadline.
func (r RealtimeConfig) WriteTimeout() time.Duration {
	if r.WriteTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.WriteTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
