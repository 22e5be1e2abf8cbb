package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Env        string
	ServerPort int
	ClientURL  string
	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxy bool
	Database   DatabaseConfig
	Auth       AuthConfig
	Reset      ResetConfig
	Mail       MailConfig
	MQ         MQConfig
	Storage    StorageConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// URL returns the postgres:// connection string used by both lib/pq and
// golang-migrate.
func (c DatabaseConfig) URL() string {
	sslmode := "disable"
	if c.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		User:   url.UserPassword(c.User, c.Password),
		Path:   c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

type AuthConfig struct {
	JWTSecret       string
	JWTExpiry       time.Duration
	BcryptCost      int
	HashConcurrency int
}

type ResetConfig struct {
	CodeTTL       time.Duration
	SweepSchedule string
	SweepGrace    time.Duration
}

type MailConfig struct {
	Transport    string
	From         string
	ResendAPIKey string
}

type MQConfig struct {
	Backend     string
	MailChannel string
	RabbitMQ    RabbitMQConfig
	PubSub      PubSubConfig
}

type RabbitMQConfig struct {
	URL      string
	Prefetch int
	Durable  bool
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type StorageConfig struct {
	Backend string
	Bucket  string
	MinIO   MinIOConfig
	GCS     GCSConfig
	S3      S3Config
}

// Enabled reports whether an object storage backend is configured.
func (c StorageConfig) Enabled() bool {
	return c.Backend != ""
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type GCSConfig struct {
	ProjectID       string
	CredentialsFile string
}

type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type RateLimitConfig struct {
	AuthRequests int
	Window       time.Duration
}

type LogConfig struct {
	Level     string
	SentryDSN string
}

// IsDev reports whether the service runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}

func LoadConfig() Config {
	if getEnv("ENV", "dev") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "postgres"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "ngoconnect"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "ngoconnect"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	return Config{
		Env:        getEnv("ENV", "dev"),
		ServerPort: getEnvInt("SERVER_PORT", 3001),
		ClientURL:  getEnv("CLIENT_URL", "http://localhost:5173"),
		TrustProxy: getEnvBool("TRUST_PROXY", false),
		Database:   dbConfig,
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", ""),
			JWTExpiry:       getEnvDuration("JWT_EXPIRY", 30*24*time.Hour),
			BcryptCost:      getEnvInt("BCRYPT_COST", 12),
			HashConcurrency: getEnvInt("HASH_CONCURRENCY", runtime.NumCPU()),
		},
		Reset: ResetConfig{
			CodeTTL:       getEnvDuration("RESET_CODE_TTL", 15*time.Minute),
			SweepSchedule: getEnv("RESET_SWEEP_SCHEDULE", "@hourly"),
			SweepGrace:    getEnvDuration("RESET_SWEEP_GRACE", 24*time.Hour),
		},
		Mail: MailConfig{
			Transport:    getEnv("MAIL_TRANSPORT", "log"),
			From:         getEnv("MAIL_FROM", "NGO Connect <noreply@ngoconnect.org>"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		},
		MQ: MQConfig{
			Backend:     getEnv("MQ_BACKEND", "memory"),
			MailChannel: getEnv("MQ_MAIL_CHANNEL", "mail.outbound"),
			RabbitMQ: RabbitMQConfig{
				URL:      getEnv("RABBITMQ_URL", ""),
				Prefetch: getEnvInt("RABBITMQ_PREFETCH", 10),
				Durable:  getEnvBool("RABBITMQ_DURABLE", true),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", ""),
			Bucket:  getEnv("STORAGE_BUCKET", "ngoconnect-avatars"),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
			S3: S3Config{
				Region:    getEnv("S3_REGION", "us-east-1"),
				Endpoint:  getEnv("S3_ENDPOINT", ""),
				AccessKey: getEnv("S3_ACCESS_KEY", ""),
				SecretKey: getEnv("S3_SECRET_KEY", ""),
			},
		},
		RateLimit: RateLimitConfig{
			AuthRequests: getEnvInt("RATE_LIMIT_AUTH", 10),
			Window:       getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		Log: LogConfig{
			Level:     getEnv("LOG_LEVEL", ""),
			SentryDSN: getEnv("SENTRY_DSN", ""),
		},
	}
}

// Validate checks that the configuration can start the service.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.JWTExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Auth.HashConcurrency < 1 {
		errs = append(errs, errors.New("HASH_CONCURRENCY must be at least 1"))
	}
	if c.Reset.CodeTTL <= 0 {
		errs = append(errs, errors.New("RESET_CODE_TTL must be positive"))
	}
	if err := oneOf("DB_DRIVER", c.Database.Driver, "postgres", "memory"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("MAIL_TRANSPORT", c.Mail.Transport, "log", "resend", "queue"); err != nil {
		errs = append(errs, err)
	}
	if c.Mail.Transport == "resend" && c.Mail.ResendAPIKey == "" {
		errs = append(errs, errors.New("RESEND_API_KEY is required when MAIL_TRANSPORT=resend"))
	}
	if err := oneOf("MQ_BACKEND", c.MQ.Backend, "memory", "rabbitmq", "pubsub"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("STORAGE_BACKEND", c.Storage.Backend, "", "minio", "gcs", "s3"); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit.AuthRequests < 1 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_AUTH and RATE_LIMIT_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(valueStr)
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(valueStr)
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}
