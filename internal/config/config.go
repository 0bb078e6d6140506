package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Chat         ChatConfig
	Identity     IdentityConfig
	Metrics      MetricsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	LockTimeoutMS  int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// BroadcastBackend selects the broadcast bus implementation.
type BroadcastBackend string

const (
	BroadcastMemory BroadcastBackend = "memory"
	BroadcastRedis  BroadcastBackend = "redis"
)

// ChatConfig tunes the chat core.
type ChatConfig struct {
	// AutoJoinGeneralRooms restricts which general rooms new users join. Empty means all.
	AutoJoinGeneralRooms  []string
	BroadcastBackend      BroadcastBackend
	SubscriberBuffer      int
	PresenceSweepSeconds  int
	ActivityRetentionDays int
}

// DemotionPolicy decides what happens to an employee ID when a user leaves every staff role.
type DemotionPolicy string

const (
	DemotionPreserve DemotionPolicy = "preserve"
	DemotionClear    DemotionPolicy = "clear"
)

// IdentityConfig tunes employee ID allocation.
type IdentityConfig struct {
	MaxAttempts    int
	RetryBackoffMS int
	OnDemotion     DemotionPolicy
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	backend := BroadcastBackend(strings.ToLower(getEnv("CHAT_BROADCAST_BACKEND", string(BroadcastMemory))))
	if backend != BroadcastMemory && backend != BroadcastRedis {
		return nil, fmt.Errorf("invalid CHAT_BROADCAST_BACKEND: %s", backend)
	}

	demotion := DemotionPolicy(strings.ToLower(getEnv("EMPLOYEE_ID_ON_DEMOTION", string(DemotionPreserve))))
	if demotion != DemotionPreserve && demotion != DemotionClear {
		return nil, fmt.Errorf("invalid EMPLOYEE_ID_ON_DEMOTION: %s", demotion)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "staffchat"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
			LockTimeoutMS:  getEnvAsInt("POSTGRES_LOCK_TIMEOUT_MS", 2000),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Chat: ChatConfig{
			AutoJoinGeneralRooms:  getEnvAsList("AUTO_JOIN_GENERAL_ROOMS"),
			BroadcastBackend:      backend,
			SubscriberBuffer:      getEnvAsInt("CHAT_SUBSCRIBER_BUFFER", 64),
			PresenceSweepSeconds:  getEnvAsInt("CHAT_PRESENCE_SWEEP_SECONDS", 60),
			ActivityRetentionDays: getEnvAsInt("CHAT_ACTIVITY_RETENTION_DAYS", 7),
		},
		Identity: IdentityConfig{
			MaxAttempts:    getEnvAsInt("ID_ALLOC_MAX_ATTEMPTS", 3),
			RetryBackoffMS: getEnvAsInt("ID_ALLOC_RETRY_BACKOFF_MS", 50),
			OnDemotion:     demotion,
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	return cfg, nil
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

// LockTimeout returns the lock wait budget for allocation transactions.
func (p PostgresConfig) LockTimeout() time.Duration {
	if p.LockTimeoutMS <= 0 {
		return 0
	}
	return time.Duration(p.LockTimeoutMS) * time.Millisecond
}

// PresenceSweepInterval returns how often stale online flags are cleared.
func (c ChatConfig) PresenceSweepInterval() time.Duration {
	if c.PresenceSweepSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.PresenceSweepSeconds) * time.Second
}

// RetryBackoff returns the base backoff between allocation attempts.
func (i IdentityConfig) RetryBackoff() time.Duration {
	if i.RetryBackoffMS <= 0 {
		return 0
	}
	return time.Duration(i.RetryBackoffMS) * time.Millisecond
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

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
