package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// Database drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Storage backends for track files.
const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// Config stores the application configuration.
type Config struct {
	ServerPort     int
	AllowedOrigins []string
	TrustProxy     bool   // honour X-Forwarded-For from a reverse proxy
	ResourceDir    string // directory scanned by the importer

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string // sqlite only
	DBMaxConns int

	StorageBackend string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string

	// Redis配置, empty host disables the vote guard
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	VoteCooldown  time.Duration

	JWTSecret         string // empty disables admin auth
	TokenTTL          time.Duration
	AdminUsername     string
	AdminPasswordHash string // bcrypt

	LogLevel string
	LogFile  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
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

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() *Config {
	return &Config{
		ServerPort:     getEnvInt("SERVER_PORT", 8080),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		TrustProxy:     getEnvBool("TRUST_PROXY", false),
		ResourceDir:    getEnv("RESOURCE_DIR", filepath.Join("resources", "tracks")),

		DBDriver:   getEnv("DB_DRIVER", DriverMySQL),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default
		DBName:     getEnv("DB_NAME", "vibing_storage"),
		DBPath:     getEnv("DB_PATH", "vibing-storage.sqlite3"),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", 20),

		StorageBackend: getEnv("STORAGE_BACKEND", StorageLocal),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "vibing-storage"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),
		VoteCooldown:  time.Duration(getEnvInt("VOTE_COOLDOWN", 60)) * time.Second,

		JWTSecret:         os.Getenv("JWT_SECRET"),
		TokenTTL:          time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
	}
}

// Validate checks the values a process cannot start without.
func (c *Config) Validate() error {
	minioRequired := validation.When(c.StorageBackend == StorageMinio, validation.Required)
	authRequired := validation.When(c.JWTSecret != "", validation.Required)
	sqlitePath := validation.When(c.DBDriver == DriverSQLite, validation.Required)
	mysqlHost := validation.When(c.DBDriver == DriverMySQL, validation.Required)

	return validation.ValidateStruct(c,
		validation.Field(&c.ServerPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.DBDriver, validation.Required, validation.In(DriverMySQL, DriverSQLite)),
		validation.Field(&c.DBHost, mysqlHost),
		validation.Field(&c.DBName, mysqlHost),
		validation.Field(&c.DBPath, sqlitePath),
		validation.Field(&c.DBMaxConns, validation.Required, validation.Min(1)),
		validation.Field(&c.StorageBackend, validation.Required, validation.In(StorageLocal, StorageMinio)),
		validation.Field(&c.MinioEndpoint, minioRequired),
		validation.Field(&c.MinioAccessKey, minioRequired),
		validation.Field(&c.MinioSecretKey, minioRequired),
		validation.Field(&c.MinioBucket, minioRequired),
		validation.Field(&c.AdminUsername, authRequired),
		validation.Field(&c.AdminPasswordHash, authRequired),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
}

// AuthEnabled reports whether mutating routes require an admin token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// RedisEnabled reports whether a Redis host was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}
