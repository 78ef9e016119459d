package config

import (
	"errors"
	"fmt"
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

// Storage drivers.
const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

// Cache drivers.
const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Storage   StorageConfig
	Uploads   UploadsConfig
	Downloads DownloadsConfig
	Cleanup   CleanupConfig
	Seed      SeedConfig
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

// DSN renders the lib/pq key/value connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig selects the cache backend for reference lists and stats.
type CacheConfig struct {
	Driver   string
	MetaTTL  time.Duration
	StatsTTL time.Duration
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LogConfig controls the zap logger. File enables a rotating file sink.
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// StorageConfig selects where uploaded files live.
type StorageConfig struct {
	Driver             string
	RootDir            string
	GCSBucket          string
	GCSCredentialsFile string
	GCSEndpoint        string
}

// UploadsConfig holds the upload validation policy.
type UploadsConfig struct {
	MaxRequestBytes    int64
	MaxPreviewBytes    int64
	ResourceExtensions []string
	PreviewExtensions  []string
}

// DownloadsConfig configures signed download links.
type DownloadsConfig struct {
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// CleanupConfig tunes the stored-file cleanup queue.
type CleanupConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// SeedConfig carries the bootstrap admin account.
type SeedConfig struct {
	OnStart       bool
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// Load reads .env (when present) and the process environment, which wins.
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and, in production, the development secrets.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.Storage.Driver {
	case StorageLocal:
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required with the gcs storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}
	switch c.Cache.Driver {
	case CacheRedis, CacheMemory, CacheNone:
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_DRIVER %q", c.Cache.Driver))
	}
	if c.Env == EnvProduction {
		if c.JWT.Secret == "" || c.JWT.Secret == defaults["JWT_SECRET"] {
			errs = append(errs, errors.New("JWT_SECRET must be set in production"))
		}
		if c.Downloads.SignedURLSecret == "" || c.Downloads.SignedURLSecret == defaults["DOWNLOAD_SIGNED_URL_SECRET"] {
			errs = append(errs, errors.New("DOWNLOAD_SIGNED_URL_SECRET must be set in production"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Driver:   strings.ToLower(v.GetString("CACHE_DRIVER")),
		MetaTTL:  parseDuration(v.GetString("CACHE_META_TTL"), 10*time.Minute),
		StatsTTL: parseDuration(v.GetString("CACHE_STATS_TTL"), time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:      v.GetString("LOG_LEVEL"),
		Format:     v.GetString("LOG_FORMAT"),
		File:       v.GetString("LOG_FILE"),
		MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
		MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
	}

	cfg.Storage = StorageConfig{
		Driver:             strings.ToLower(v.GetString("STORAGE_DRIVER")),
		RootDir:            v.GetString("STORAGE_ROOT_DIR"),
		GCSBucket:          v.GetString("GCS_BUCKET"),
		GCSCredentialsFile: v.GetString("GCS_CREDENTIALS_FILE"),
		GCSEndpoint:        v.GetString("GCS_ENDPOINT"),
	}

	cfg.Uploads = UploadsConfig{
		MaxRequestBytes:    positiveInt64(v.GetInt64("UPLOAD_MAX_REQUEST_BYTES"), 1<<30),
		MaxPreviewBytes:    positiveInt64(v.GetInt64("UPLOAD_MAX_PREVIEW_BYTES"), 5<<20),
		ResourceExtensions: splitAndTrim(v.GetString("UPLOAD_RESOURCE_EXTENSIONS")),
		PreviewExtensions:  splitAndTrim(v.GetString("UPLOAD_PREVIEW_EXTENSIONS")),
	}

	cfg.Downloads = DownloadsConfig{
		SignedURLSecret: v.GetString("DOWNLOAD_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("DOWNLOAD_SIGNED_URL_TTL"), 15*time.Minute),
	}

	cfg.Cleanup = CleanupConfig{
		Workers:    v.GetInt("CLEANUP_WORKERS"),
		MaxRetries: v.GetInt("CLEANUP_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("CLEANUP_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Seed = SeedConfig{
		OnStart:       v.GetBool("SEED_ON_START"),
		AdminName:     v.GetString("SEED_ADMIN_NAME"),
		AdminEmail:    v.GetString("SEED_ADMIN_EMAIL"),
		AdminPassword: v.GetString("SEED_ADMIN_PASSWORD"),
	}

	return cfg
}

var defaults = map[string]interface{}{
	"ENV":        EnvDevelopment,
	"PORT":       5000,
	"API_PREFIX": "/api",

	"DB_HOST":           "localhost",
	"DB_PORT":           5432,
	"DB_USER":           "postgres",
	"DB_PASSWORD":       "postgres",
	"DB_NAME":           "resource_hub",
	"DB_SSL_MODE":       "disable",
	"DB_MAX_OPEN_CONNS": 10,
	"DB_MAX_IDLE_CONNS": 5,

	"REDIS_HOST":     "localhost",
	"REDIS_PORT":     6379,
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"CACHE_DRIVER":    CacheMemory,
	"CACHE_META_TTL":  "10m",
	"CACHE_STATS_TTL": "1m",

	"JWT_SECRET":               "dev_secret",
	"JWT_EXPIRATION":           "24h",
	"REFRESH_TOKEN_EXPIRATION": "168h",

	"ALLOWED_ORIGINS":  "",
	"LOG_LEVEL":        "info",
	"LOG_FORMAT":       "json",
	"LOG_FILE":         "",
	"LOG_MAX_SIZE_MB":  100,
	"LOG_MAX_BACKUPS":  5,
	"LOG_MAX_AGE_DAYS": 30,

	"STORAGE_DRIVER":       StorageLocal,
	"STORAGE_ROOT_DIR":     "./uploads",
	"GCS_BUCKET":           "",
	"GCS_CREDENTIALS_FILE": "",
	"GCS_ENDPOINT":         "",

	"UPLOAD_MAX_REQUEST_BYTES":   1 << 30,
	"UPLOAD_MAX_PREVIEW_BYTES":   5 << 20,
	"UPLOAD_RESOURCE_EXTENSIONS": "pdf,doc,docx,ppt,pptx,xls,xlsx,csv,zip,rar,mp4,avi,mov,wmv,flv,mkv,webm,jpg,jpeg,png,gif",
	"UPLOAD_PREVIEW_EXTENSIONS":  "jpg,jpeg,png,gif,webp",

	"DOWNLOAD_SIGNED_URL_SECRET": "dev_download_secret",
	"DOWNLOAD_SIGNED_URL_TTL":    "15m",

	"CLEANUP_WORKERS":     2,
	"CLEANUP_MAX_RETRIES": 3,
	"CLEANUP_RETRY_DELAY": "5s",

	"SEED_ON_START":       false,
	"SEED_ADMIN_NAME":     "System Admin",
	"SEED_ADMIN_EMAIL":    "admin@resources.com",
	"SEED_ADMIN_PASSWORD": "admin123",
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
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

func positiveInt64(value, fallback int64) int64 {
	if value <= 0 {
		return fallback
	}
	return value
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
