package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Registration id strategies.
const (
	IDStrategyComposite = "composite"
	IDStrategyRandom    = "random"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Store         StoreConfig
	Database      DatabaseConfig
	DynamoDB      DynamoDBConfig
	Redis         RedisConfig
	Cache         CacheConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Calendar      CalendarConfig
	Registrations RegistrationsConfig
	Notifications NotificationsConfig
	Metrics       MetricsConfig
	Docs          DocsConfig
}

// StoreConfig selects the row store backing every logical table.
type StoreConfig struct {
	Backend string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DynamoDBConfig points the dynamodb backend at a single-table layout.
type DynamoDBConfig struct {
	Table    string
	Region   string
	Endpoint string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig governs the table cache and the directory memo.
type CacheConfig struct {
	Backend      string
	TableTTL     time.Duration
	DirectoryTTL time.Duration
	Compress     bool
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CalendarConfig locates the academic calendar used for trimester routing.
type CalendarConfig struct {
	File           string
	EnrollmentLead time.Duration
}

// RegistrationsConfig tunes registration identity and capacity defaults.
type RegistrationsConfig struct {
	IDStrategy           string
	DefaultClassCapacity int
}

// NotificationsConfig toggles SNS publication of registration events.
type NotificationsConfig struct {
	Enabled  bool
	TopicARN string
	Region   string
	Workers  int
	Retries  int
}

type MetricsConfig struct {
	Enabled bool
}

type DocsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Store = StoreConfig{Backend: strings.ToLower(v.GetString("STORE_BACKEND"))}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.DynamoDB = DynamoDBConfig{
		Table:    v.GetString("DYNAMODB_TABLE"),
		Region:   v.GetString("AWS_REGION"),
		Endpoint: v.GetString("DYNAMODB_ENDPOINT"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Backend:      strings.ToLower(v.GetString("CACHE_BACKEND")),
		TableTTL:     parseDuration(v.GetString("TABLE_CACHE_TTL"), 5*time.Minute),
		DirectoryTTL: parseDuration(v.GetString("DIRECTORY_CACHE_TTL"), time.Minute),
		Compress:     v.GetBool("CACHE_COMPRESS"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Calendar = CalendarConfig{
		File:           v.GetString("CALENDAR_FILE"),
		EnrollmentLead: parseDuration(v.GetString("ENROLLMENT_LEAD"), 21*24*time.Hour),
	}

	capacity := v.GetInt("DEFAULT_CLASS_CAPACITY")
	if capacity <= 0 {
		capacity = 12
	}
	strategy := strings.ToLower(v.GetString("REGISTRATION_ID_STRATEGY"))
	if strategy != IDStrategyRandom {
		strategy = IDStrategyComposite
	}
	cfg.Registrations = RegistrationsConfig{
		IDStrategy:           strategy,
		DefaultClassCapacity: capacity,
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:  v.GetBool("ENABLE_NOTIFICATIONS"),
		TopicARN: v.GetString("SNS_TOPIC_ARN"),
		Region:   v.GetString("AWS_REGION"),
		Workers:  v.GetInt("NOTIFY_WORKERS"),
		Retries:  v.GetInt("NOTIFY_RETRIES"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}
	cfg.Docs = DocsConfig{Enabled: v.GetBool("ENABLE_DOCS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORE_BACKEND", StoreMemory)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lesson_registrations")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("DYNAMODB_TABLE", "lesson_registrations")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("DYNAMODB_ENDPOINT", "")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CACHE_BACKEND", CacheMemory)
	v.SetDefault("TABLE_CACHE_TTL", "5m")
	v.SetDefault("DIRECTORY_CACHE_TTL", "1m")
	v.SetDefault("CACHE_COMPRESS", true)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CALENDAR_FILE", "")
	v.SetDefault("ENROLLMENT_LEAD", "504h")

	v.SetDefault("REGISTRATION_ID_STRATEGY", IDStrategyComposite)
	v.SetDefault("DEFAULT_CLASS_CAPACITY", 12)

	v.SetDefault("ENABLE_NOTIFICATIONS", false)
	v.SetDefault("SNS_TOPIC_ARN", "")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_RETRIES", 3)

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("ENABLE_DOCS", false)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
