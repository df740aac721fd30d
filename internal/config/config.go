package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Поддерживаемые бэкенды хранилища файлов
const (
	StorageCloudinary = "cloudinary"
	StorageS3         = "s3"
	StorageMemory     = "memory"
)

// Config структура конфигурации
type Config struct {
	AppEnv     string
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Storage    StorageConfig
	Cloudinary CloudinaryConfig
	AWS        AWSConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

// ServerConfig содержит настройки HTTP-сервера
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	BodyLimit      int
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// JWTConfig содержит параметры токенов
type JWTConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// StorageConfig описывает хранилище изображений
type StorageConfig struct {
	Backend       string
	ListingBucket string
	AvatarBucket  string
	MaxUploadSize int64
}

// CloudinaryConfig содержит конфигурацию для Cloudinary
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// AWSConfig содержит конфигурацию для S3
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	CloudFrontURL   string
}

// RateLimitConfig задаёт лимиты запросов на IP
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	AuthPerMinute     int
}

// LogConfig задаёт уровень и формат логов
type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig загружает переменные из .env и окружения
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("⚠️ .env файл не найден, используем переменные окружения")
	}

	dbConfig := DatabaseConfig{
		URL:          getEnv("DATABASE_URL", ""),
		Host:         getEnv("PGHOST", "localhost"),
		Port:         getEnv("PGPORT", "5432"),
		User:         getEnv("PGUSER", "bazaar_user"),
		Password:     getEnv("PGPASSWORD", "bazaar_pass"),
		Name:         getEnv("PGDATABASE", "bazaar"),
		SSLMode:      getEnv("PGSSLMODE", "disable"),
		MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
	}

	// Формируем строку подключения, если DATABASE_URL не задан
	if dbConfig.URL == "" {
		dbConfig.URL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name, dbConfig.SSLMode)
	}

	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
			BodyLimit:      getEnvAsInt("BODY_LIMIT_MB", 20) * 1024 * 1024,
		},
		Database: dbConfig,
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			AccessTTL:  getEnvAsDuration("JWT_ACCESS_TTL", time.Hour),
			RefreshTTL: getEnvAsDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(getEnv("STORAGE_BACKEND", StorageCloudinary)),
			ListingBucket: getEnv("STORAGE_LISTING_BUCKET", "listings-images"),
			AvatarBucket:  getEnv("STORAGE_AVATAR_BUCKET", "profile-images"),
			MaxUploadSize: int64(getEnvAsInt("STORAGE_MAX_UPLOAD_MB", 5)) * 1024 * 1024,
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
			Folder:    getEnv("CLOUDINARY_FOLDER", "bazaar"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			CloudFrontURL:   getEnv("AWS_CLOUDFRONT_URL", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
			AuthPerMinute:     getEnvAsInt("RATE_LIMIT_AUTH_PER_MINUTE", 10),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		errs = append(errs, errors.New("JWT TTLs must be positive"))
	}
	if c.Database.MaxOpenConns <= 0 || c.Database.MaxIdleConns < 0 {
		errs = append(errs, errors.New("invalid database pool settings"))
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 || c.RateLimit.AuthPerMinute <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}

	switch c.Storage.Backend {
	case StorageCloudinary:
		if c.Cloudinary.CloudName == "" || c.Cloudinary.APIKey == "" || c.Cloudinary.APISecret == "" {
			errs = append(errs, errors.New("cloudinary storage requires CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET"))
		}
	case StorageS3:
		if c.AWS.AccessKeyID == "" || c.AWS.SecretAccessKey == "" {
			errs = append(errs, errors.New("s3 storage requires AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY"))
		}
	case StorageMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("memory storage is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}

	return errors.Join(errs...)
}

// IsProduction сообщает, запущено ли приложение в production
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// getEnv получает переменную окружения или использует дефолтное значение
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
