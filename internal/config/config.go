package config

import (
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DatabaseConfig holds metadata store settings. When DSN is empty the
// store falls back to a local sqlite file, which is what dev and test
// environments use.
type DatabaseConfig struct {
	DSN        string
	SQLitePath string
}

// StorageConfig selects the content store backend.
type StorageConfig struct {
	Backend  string // "filesystem" or "minio"
	BasePath string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
}

// CacheConfig selects the derived-data cache backend.
type CacheConfig struct {
	Backend   string // "filesystem" or "redis"
	Dir       string
	RedisAddr string
	Codec     string // "nop", "gzip", "lz4" or "brotli"
	TTLHours  int
}

// EventConfig selects the lifecycle event sink.
type EventConfig struct {
	Sink         string // "log", "kafka" or "nop"
	KafkaBrokers string
	KafkaTopic   string
}

type Config struct {
	Env            string
	Database       DatabaseConfig
	Storage        StorageConfig
	Cache          CacheConfig
	Events         EventConfig
	FixOrientation bool
}

// LoadConfig reads configuration from environment variables. A .env file
// is auto-loaded when present; real environment variables take
// precedence.
func LoadConfig() *Config {
	return &Config{
		Env: getEnv("ENV", "dev"),
		Database: DatabaseConfig{
			DSN:        getEnv("DB_DSN", ""),
			SQLitePath: getEnv("DB_SQLITE_PATH", ".docvault/docvault.db"),
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "filesystem"),
			BasePath:       getEnv("STORAGE_PATH", ".docvault/content"),
			MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
			MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinIOBucket:    getEnv("MINIO_BUCKET", "docvault"),
			MinIOUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Cache: CacheConfig{
			Backend:   getEnv("CACHE_BACKEND", "filesystem"),
			Dir:       getEnv("CACHE_DIR", ".docvault/cache"),
			RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
			Codec:     getEnv("CACHE_CODEC", "gzip"),
			TTLHours:  getEnvInt("CACHE_TTL_HOURS", 0),
		},
		Events: EventConfig{
			Sink:         getEnv("EVENT_SINK", "log"),
			KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "docvault.events"),
		},
		FixOrientation: getEnvBool("FIX_ORIENTATION", false),
	}
}

// GetDb opens the metadata store described by the config. Postgres is
// used when a DSN is set, sqlite otherwise.
func GetDb(cnf *Config) *gorm.DB {
	var (
		db  *gorm.DB
		err error
	)

	if cnf.Database.DSN != "" {
		db, err = gorm.Open(postgres.Open(cnf.Database.DSN), &gorm.Config{})
	} else {
		if mkerr := os.MkdirAll(filepath.Dir(cnf.Database.SQLitePath), os.ModePerm); mkerr != nil {
			logrus.Fatalf("error creating database directory: %v", mkerr)
		}
		db, err = gorm.Open(sqlite.Open(cnf.Database.SQLitePath), &gorm.Config{})
	}
	if err != nil {
		logrus.Fatalf("error connecting to database: %v", err)
	}

	return db
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
