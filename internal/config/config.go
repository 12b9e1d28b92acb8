package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const minTransferCodeLength = 12

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Transfer     TransferConfig
	Verification VerificationConfig
	Notification NotificationConfig
	Storage      StorageConfig
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
	BodyLimitBytes        int
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
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret                      string
	AccessTokenTTLMinutes          int
	BcryptCost                     int
	PasswordMinLength              int
	PasswordMinScore               int
	RevokeSessionsOnPasswordChange bool
}

// TransferConfig is the ownership transfer policy.
type TransferConfig struct {
	CooldownDays int
	TTLHours     int
	CodeLength   int
}

// VerificationConfig controls the email verification code flow.
type VerificationConfig struct {
	CodeTTLMinutes  int
	TokenTTLMinutes int
	ExposeCode      bool
}

// NotificationConfig holds outbound email settings. An empty SMTPHost selects
// the log-only notifier.
type NotificationConfig struct {
	EmailFrom          string
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	QueueSize          int
	SendTimeoutSeconds int
}

// StorageConfig configures the S3-compatible pet photo store. An empty Bucket
// disables photo uploads.
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKey       string
	SecretKey       string
	Bucket          string
	ForcePathStyle  bool
	MaxPhotoBytes   int64
	PhotoURLTTLMins int
}

// MetricsConfig configures prometheus collectors.
type MetricsConfig struct {
	Namespace string
	Enabled   bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "pet-registry"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			BodyLimitBytes:        getEnvAsInt("HTTP_BODY_LIMIT_BYTES", 8*1024*1024),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "pets"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:                      getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:          getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:                     getEnvAsInt("AUTH_BCRYPT_COST", 12),
			PasswordMinLength:              getEnvAsInt("AUTH_PASSWORD_MIN_LENGTH", 8),
			PasswordMinScore:               getEnvAsInt("AUTH_PASSWORD_MIN_SCORE", 2),
			RevokeSessionsOnPasswordChange: getEnvAsBool("AUTH_REVOKE_SESSIONS_ON_PASSWORD_CHANGE", true),
		},
		Transfer: TransferConfig{
			CooldownDays: getEnvAsInt("TRANSFER_COOLDOWN_DAYS", 7),
			TTLHours:     getEnvAsInt("TRANSFER_TTL_HOURS", 48),
			CodeLength:   getEnvAsInt("TRANSFER_CODE_LENGTH", minTransferCodeLength),
		},
		Verification: VerificationConfig{
			CodeTTLMinutes:  getEnvAsInt("VERIFICATION_CODE_TTL_MINUTES", 5),
			TokenTTLMinutes: getEnvAsInt("VERIFICATION_TOKEN_TTL_MINUTES", 10),
			ExposeCode:      getEnvAsBool("AUTH_EXPOSE_VERIFICATION_CODE", false),
		},
		Notification: NotificationConfig{
			EmailFrom:          getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:           os.Getenv("SMTP_HOST"),
			SMTPPort:           getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:           os.Getenv("SMTP_USER"),
			SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
			QueueSize:          getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			SendTimeoutSeconds: getEnvAsInt("NOTIFY_SEND_TIMEOUT_SECONDS", 15),
		},
		Storage: StorageConfig{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			AccessKey:       os.Getenv("S3_ACCESS_KEY"),
			SecretKey:       os.Getenv("S3_SECRET_KEY"),
			Bucket:          os.Getenv("S3_BUCKET"),
			ForcePathStyle:  getEnvAsBool("S3_FORCE_PATH_STYLE", true),
			MaxPhotoBytes:   int64(getEnvAsInt("PET_PHOTO_MAX_BYTES", 5*1024*1024)),
			PhotoURLTTLMins: getEnvAsInt("PET_PHOTO_URL_TTL_MINUTES", 15),
		},
		Metrics: MetricsConfig{
			Namespace: getEnv("METRICS_NAMESPACE", "pet_registry"),
			Enabled:   getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if cfg.Transfer.CodeLength < minTransferCodeLength {
		cfg.Transfer.CodeLength = minTransferCodeLength
	}
	if cfg.Transfer.CooldownDays < 0 {
		return nil, fmt.Errorf("invalid TRANSFER_COOLDOWN_DAYS: %d", cfg.Transfer.CooldownDays)
	}
	if cfg.Transfer.TTLHours <= 0 {
		return nil, fmt.Errorf("invalid TRANSFER_TTL_HOURS: %d", cfg.Transfer.TTLHours)
	}
	if cfg.App.Env == "production" && cfg.Auth.JWTSecret == "dev-secret" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET must be set in production")
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

// TTL returns how long a pending transfer stays acceptable.
func (t TransferConfig) TTL() time.Duration {
	return time.Duration(t.TTLHours) * time.Hour
}

// CodeTTL returns the verification code validity window.
func (v VerificationConfig) CodeTTL() time.Duration {
	return time.Duration(v.CodeTTLMinutes) * time.Minute
}

// TokenTTL returns the lifetime of the password-change token.
func (v VerificationConfig) TokenTTL() time.Duration {
	return time.Duration(v.TokenTTLMinutes) * time.Minute
}

func (n NotificationConfig) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", n.SMTPHost, n.SMTPPort)
}

func (n NotificationConfig) SendTimeout() time.Duration {
	if n.SendTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(n.SendTimeoutSeconds) * time.Second
}

func (s StorageConfig) PhotoURLTTL() time.Duration {
	return time.Duration(s.PhotoURLTTLMins) * time.Minute
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
