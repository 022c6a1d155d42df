package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/carmarket/backend/internal/validation"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config is the server configuration. Values come from defaults, then the
// optional YAML file named by CONFIG_PATH, then the environment.
type Config struct {
	AppEnv        string        `yaml:"appEnv"`
	ServerAddress string        `yaml:"serverAddress"`
	LogLevel      string        `yaml:"logLevel"`
	LogFormat     string        `yaml:"logFormat"`
	JWTSecret     string        `yaml:"jwtSecret"`
	JWTExpiration time.Duration `yaml:"jwtExpiration"`

	StoreDriver string `yaml:"storeDriver"`
	DatabaseURL string `yaml:"databaseURL"`
	MongoURI    string `yaml:"mongoURI"`
	MongoDB     string `yaml:"mongoDB"`
	DataDir     string `yaml:"dataDir"`

	MediaDriver     string `yaml:"mediaDriver"`
	MediaFolder     string `yaml:"mediaFolder"`
	UploadDir       string `yaml:"uploadDir"`
	PublicBaseURL   string `yaml:"publicBaseURL"`
	MaxUploadSizeMB int64  `yaml:"maxUploadSizeMB"`
	MediaModeration bool   `yaml:"mediaModeration"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	MinioPublicURL string `yaml:"minioPublicURL"`

	FirebaseCredentialsJSON string `yaml:"firebaseCredentialsJSON"`
	FirebaseStorageBucket   string `yaml:"firebaseStorageBucket"`

	RedisAddr              string `yaml:"redisAddr"`
	RedisPassword          string `yaml:"redisPassword"`
	AuthRateLimitPerMinute int    `yaml:"authRateLimitPerMinute"`

	KnownMakes []string `yaml:"knownMakes"`
}

func defaults() *Config {
	return &Config{
		AppEnv:                 "development",
		ServerAddress:          ":8080",
		LogLevel:               "info",
		LogFormat:              "text",
		JWTSecret:              defaultJWTSecret,
		JWTExpiration:          7 * 24 * time.Hour,
		StoreDriver:            "memory",
		MongoDB:                "carmarket",
		MediaDriver:            "local",
		MediaFolder:            "cars",
		UploadDir:              "./uploads",
		PublicBaseURL:          "http://localhost:8080",
		MaxUploadSizeMB:        10,
		AuthRateLimitPerMinute: 10,
	}
}

// Load reads .env (if present), the YAML file at CONFIG_PATH (if set) and the
// environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()
	if path := getEnv("CONFIG_PATH", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.ServerAddress = getEnv("SERVER_ADDRESS", cfg.ServerAddress)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", cfg.StoreDriver))
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDB = getEnv("MONGO_DB", cfg.MongoDB)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.MediaDriver = strings.ToLower(getEnv("MEDIA_DRIVER", cfg.MediaDriver))
	cfg.MediaFolder = getEnv("MEDIA_FOLDER", cfg.MediaFolder)
	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.UploadDir)
	cfg.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", cfg.PublicBaseURL), "/")
	cfg.MinioEndpoint = getEnv("MINIO_ENDPOINT", cfg.MinioEndpoint)
	cfg.MinioAccessKey = getEnv("MINIO_ACCESS_KEY", cfg.MinioAccessKey)
	cfg.MinioSecretKey = getEnv("MINIO_SECRET_KEY", cfg.MinioSecretKey)
	cfg.MinioBucket = getEnv("MINIO_BUCKET", cfg.MinioBucket)
	cfg.MinioPublicURL = getEnv("MINIO_PUBLIC_URL", cfg.MinioPublicURL)
	cfg.FirebaseCredentialsJSON = getEnv("FIREBASE_CREDENTIALS_JSON", cfg.FirebaseCredentialsJSON)
	cfg.FirebaseStorageBucket = getEnv("FIREBASE_STORAGE_BUCKET", cfg.FirebaseStorageBucket)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)

	var err error
	if cfg.JWTExpiration, err = getDuration("JWT_EXPIRATION", cfg.JWTExpiration); err != nil {
		return nil, err
	}
	if cfg.MaxUploadSizeMB, err = getInt64("MAX_UPLOAD_SIZE_MB", cfg.MaxUploadSizeMB); err != nil {
		return nil, err
	}
	limit, err := getInt64("AUTH_RATE_LIMIT_PER_MINUTE", int64(cfg.AuthRateLimitPerMinute))
	if err != nil {
		return nil, err
	}
	cfg.AuthRateLimitPerMinute = int(limit)
	if cfg.MinioUseSSL, err = getBool("MINIO_USE_SSL", cfg.MinioUseSSL); err != nil {
		return nil, err
	}
	if cfg.MediaModeration, err = getBool("MEDIA_MODERATION", cfg.MediaModeration); err != nil {
		return nil, err
	}
	if v := getEnv("KNOWN_MAKES", ""); v != "" {
		cfg.KnownMakes = splitCSV(v)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Catalog returns the configured makes, or the built-in list when none are set.
func (c *Config) Catalog() *validation.Catalog {
	if len(c.KnownMakes) == 0 {
		return validation.DefaultCatalog()
	}
	return validation.NewCatalog(c.KnownMakes)
}

// MaxUploadBytes is the per-image size limit.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSizeMB << 20
}

func (c *Config) validate() error {
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		return errors.New("config: JWT_SECRET must be set in production")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.JWTExpiration <= 0 {
		return errors.New("config: JWT_EXPIRATION must be positive")
	}
	if c.MaxUploadSizeMB <= 0 {
		return errors.New("config: MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.AuthRateLimitPerMinute <= 0 {
		return errors.New("config: AUTH_RATE_LIMIT_PER_MINUTE must be positive")
	}

	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres store")
		}
	case "sqlite":
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL (a file path) is required for the sqlite store")
		}
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("config: MONGO_URI is required for the mongo store")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.MediaDriver {
	case "local":
		if c.UploadDir == "" {
			return errors.New("config: UPLOAD_DIR is required for local media")
		}
	case "minio":
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" || c.MinioBucket == "" {
			return errors.New("config: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET are required for minio media")
		}
	case "firebase":
		if c.FirebaseStorageBucket == "" {
			return errors.New("config: FIREBASE_STORAGE_BUCKET is required for firebase media")
		}
	default:
		return fmt.Errorf("config: unknown MEDIA_DRIVER %q", c.MediaDriver)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return b, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
