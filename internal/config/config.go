// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Cache     CacheConfig
	Upload    UploadConfig
	Auth      AuthConfig
	Billing   BillingConfig
	Access    AccessConfig
	Migration MigrationConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// BackendConfig is the connection info for one S3-compatible endpoint.
type BackendConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// StorageConfig selects bucket names and public hosts for one environment.
// It is handed to every storage-facing component at construction time.
type StorageConfig struct {
	Driver      string
	Environment string
	Buckets     map[string]string
	CDNHosts    map[string]string
	Primary     BackendConfig
	Secondary   BackendConfig
	CacheHeader string
}

// Bucket returns the bucket name used by both backends in the configured environment.
func (s StorageConfig) Bucket() string {
	if b, ok := s.Buckets[s.Environment]; ok && b != "" {
		return b
	}
	return "media-" + s.Environment
}

// CDNHost returns the public host (scheme included) for the configured environment.
func (s StorageConfig) CDNHost() string {
	host := s.CDNHosts[s.Environment]
	if host == "" {
		host = "http://localhost:9000/" + s.Bucket()
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/")
}

// PublicURL joins the CDN host and an object key.
func (s StorageConfig) PublicURL(key string) string {
	return s.CDNHost() + "/" + strings.TrimPrefix(key, "/")
}

type CacheConfig struct {
	Driver         string
	RedisURL       string
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	ObjectTTL      time.Duration
	MemoryEntries  int
	PopulateQueue  int
	PopulateWorker int
}

type UploadConfig struct {
	ImageMaxBytes    int64
	VideoMaxBytes    int64
	AudioMaxBytes    int64
	DocumentMaxBytes int64
	AllowedTypes     []string
	Compress         bool
	JPEGQuality      int
}

type AuthConfig struct {
	JWTSecret string
}

type BillingConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
}

type AccessConfig struct {
	CallTimeout time.Duration
}

type MigrationConfig struct {
	Workers  int
	PageSize int
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	once     sync.Once
	instance *Config
	loadErr  error
)

// Load reads configuration once from .env (if present) and the environment.
func Load() (*Config, error) {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.New()
		setDefaults(v)

		// Read from environment variables
		v.AutomaticEnv()

		instance, loadErr = fromViper(v)
	})

	return instance, loadErr
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("DB_DRIVER", "pgx")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "media")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("STORAGE_DRIVER", "s3")
	v.SetDefault("STORAGE_ENV", "development")
	v.SetDefault("STORAGE_BUCKET_PRODUCTION", "media-production")
	v.SetDefault("STORAGE_BUCKET_DEVELOPMENT", "media-development")
	v.SetDefault("STORAGE_CDN_HOST_PRODUCTION", "")
	v.SetDefault("STORAGE_CDN_HOST_DEVELOPMENT", "")
	v.SetDefault("STORAGE_CACHE_CONTROL", "public, max-age=31536000")
	v.SetDefault("STORAGE_PRIMARY_ENDPOINT", "localhost:9000")
	v.SetDefault("STORAGE_PRIMARY_REGION", "us-east-1")
	v.SetDefault("STORAGE_PRIMARY_USE_SSL", false)
	v.SetDefault("STORAGE_SECONDARY_ENDPOINT", "http://localhost:9100")
	v.SetDefault("STORAGE_SECONDARY_REGION", "auto")

	v.SetDefault("CACHE_DRIVER", "memory")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_OBJECT_TTL", 24*time.Hour)
	v.SetDefault("CACHE_MEMORY_ENTRIES", 512)
	v.SetDefault("CACHE_POPULATE_QUEUE", 256)
	v.SetDefault("CACHE_POPULATE_WORKERS", 4)

	v.SetDefault("UPLOAD_IMAGE_MAX", "100MB")
	v.SetDefault("UPLOAD_VIDEO_MAX", "100MB")
	v.SetDefault("UPLOAD_AUDIO_MAX", "50MB")
	v.SetDefault("UPLOAD_DOCUMENT_MAX", "25MB")
	v.SetDefault("UPLOAD_ALLOWED_TYPES", DefaultAllowedTypes)
	v.SetDefault("UPLOAD_COMPRESS", true)
	v.SetDefault("UPLOAD_JPEG_QUALITY", 80)

	v.SetDefault("JWT_SECRET", "change_me_in_production")

	v.SetDefault("BILLING_BASE_URL", "http://localhost:8090")
	v.SetDefault("BILLING_TIMEOUT", 3*time.Second)
	v.SetDefault("ACCESS_CALL_TIMEOUT", 2*time.Second)

	v.SetDefault("MIGRATION_WORKERS", 8)
	v.SetDefault("MIGRATION_PAGE_SIZE", 1000)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// DefaultAllowedTypes is the upload mimetype allow-list.
var DefaultAllowedTypes = []string{
	"image/jpeg", "image/png", "image/webp", "image/gif",
	"video/mp4", "video/webm", "video/quicktime",
	"audio/mpeg", "audio/wav", "audio/ogg", "audio/mp4",
	"application/pdf",
}

func fromViper(v *viper.Viper) (*Config, error) {
	sizes := map[string]int64{}
	for _, key := range []string{"UPLOAD_IMAGE_MAX", "UPLOAD_VIDEO_MAX", "UPLOAD_AUDIO_MAX", "UPLOAD_DOCUMENT_MAX"} {
		n, err := humanize.ParseBytes(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		sizes[key] = int64(n)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("DB_DRIVER"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Storage: StorageConfig{
			Driver:      v.GetString("STORAGE_DRIVER"),
			Environment: v.GetString("STORAGE_ENV"),
			Buckets: map[string]string{
				"production":  v.GetString("STORAGE_BUCKET_PRODUCTION"),
				"development": v.GetString("STORAGE_BUCKET_DEVELOPMENT"),
			},
			CDNHosts: map[string]string{
				"production":  v.GetString("STORAGE_CDN_HOST_PRODUCTION"),
				"development": v.GetString("STORAGE_CDN_HOST_DEVELOPMENT"),
			},
			Primary: BackendConfig{
				Endpoint:  v.GetString("STORAGE_PRIMARY_ENDPOINT"),
				AccessKey: v.GetString("STORAGE_PRIMARY_ACCESS_KEY"),
				SecretKey: v.GetString("STORAGE_PRIMARY_SECRET_KEY"),
				Region:    v.GetString("STORAGE_PRIMARY_REGION"),
				UseSSL:    v.GetBool("STORAGE_PRIMARY_USE_SSL"),
			},
			Secondary: BackendConfig{
				Endpoint:  v.GetString("STORAGE_SECONDARY_ENDPOINT"),
				AccessKey: v.GetString("STORAGE_SECONDARY_ACCESS_KEY"),
				SecretKey: v.GetString("STORAGE_SECONDARY_SECRET_KEY"),
				Region:    v.GetString("STORAGE_SECONDARY_REGION"),
				UseSSL:    true,
			},
			CacheHeader: v.GetString("STORAGE_CACHE_CONTROL"),
		},
		Cache: CacheConfig{
			Driver:         v.GetString("CACHE_DRIVER"),
			RedisURL:       v.GetString("REDIS_URL"),
			RedisHost:      v.GetString("REDIS_HOST"),
			RedisPort:      v.GetString("REDIS_PORT"),
			RedisPassword:  v.GetString("REDIS_PASSWORD"),
			RedisDB:        v.GetInt("REDIS_DB"),
			ObjectTTL:      v.GetDuration("CACHE_OBJECT_TTL"),
			MemoryEntries:  v.GetInt("CACHE_MEMORY_ENTRIES"),
			PopulateQueue:  v.GetInt("CACHE_POPULATE_QUEUE"),
			PopulateWorker: v.GetInt("CACHE_POPULATE_WORKERS"),
		},
		Upload: UploadConfig{
			ImageMaxBytes:    sizes["UPLOAD_IMAGE_MAX"],
			VideoMaxBytes:    sizes["UPLOAD_VIDEO_MAX"],
			AudioMaxBytes:    sizes["UPLOAD_AUDIO_MAX"],
			DocumentMaxBytes: sizes["UPLOAD_DOCUMENT_MAX"],
			AllowedTypes:     v.GetStringSlice("UPLOAD_ALLOWED_TYPES"),
			Compress:         v.GetBool("UPLOAD_COMPRESS"),
			JPEGQuality:      v.GetInt("UPLOAD_JPEG_QUALITY"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
		},
		Billing: BillingConfig{
			BaseURL:      v.GetString("BILLING_BASE_URL"),
			ClientID:     v.GetString("BILLING_CLIENT_ID"),
			ClientSecret: v.GetString("BILLING_CLIENT_SECRET"),
			TokenURL:     v.GetString("BILLING_TOKEN_URL"),
			Timeout:      v.GetDuration("BILLING_TIMEOUT"),
		},
		Access: AccessConfig{
			CallTimeout: v.GetDuration("ACCESS_CALL_TIMEOUT"),
		},
		Migration: MigrationConfig{
			Workers:  v.GetInt("MIGRATION_WORKERS"),
			PageSize: v.GetInt("MIGRATION_PAGE_SIZE"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if cfg.Storage.Environment != "production" && cfg.Storage.Environment != "development" {
		return nil, fmt.Errorf("unknown STORAGE_ENV %q", cfg.Storage.Environment)
	}

	return cfg, nil
}
