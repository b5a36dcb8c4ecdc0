package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Environment
	Environment string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Server Configuration
	ServerHost string `mapstructure:"SERVER_HOST"`
	ServerPort string `mapstructure:"SERVER_PORT"`

	// Database Configuration
	DBHost           string `mapstructure:"DB_HOST"`
	DBPort           string `mapstructure:"DB_PORT"`
	DBUser           string `mapstructure:"DB_USER"`
	DBPassword       string `mapstructure:"DB_PASSWORD"`
	DBName           string `mapstructure:"DB_NAME"`
	DBSSLMode        string `mapstructure:"DB_SSLMODE"`
	DBMaxConnections int    `mapstructure:"DB_MAX_CONNECTIONS"`

	// Redis Configuration
	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     string `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Worker Configuration
	WorkerConcurrency   int `mapstructure:"WORKER_CONCURRENCY"`
	WorkerMaxRetries    int `mapstructure:"WORKER_MAX_RETRIES"`
	WorkerQueuePriority map[string]int

	// OCR Configuration
	OCREngine        string   `mapstructure:"OCR_ENGINE"`
	OCRLanguages     []string `mapstructure:"OCR_LANGUAGES"`
	AzureOCREndpoint string   `mapstructure:"AZURE_OCR_ENDPOINT"`
	AzureOCRKey      string   `mapstructure:"AZURE_OCR_KEY"`

	// Pipeline Configuration
	LayoutPath         string  `mapstructure:"LAYOUT_PATH"`
	ScaleFactor        float64 `mapstructure:"SCALE_FACTOR"`
	QRScaleFactor      float64 `mapstructure:"QR_SCALE_FACTOR"`
	FileTimeoutSeconds int     `mapstructure:"FILE_TIMEOUT_SECONDS"`
	BatchWorkers       int     `mapstructure:"BATCH_WORKERS"`
	LockBackend        string  `mapstructure:"LOCK_BACKEND"`
	LockTTLSeconds     int     `mapstructure:"LOCK_TTL_SECONDS"`
	DedupEnableLevel2  bool    `mapstructure:"DEDUP_ENABLE_LEVEL2"`

	// Invoice source
	Source         string `mapstructure:"SOURCE"`
	SourceDir      string `mapstructure:"SOURCE_DIR"`
	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioPrefix    string `mapstructure:"MINIO_PREFIX"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`

	// File Processing
	MaxFileSize          int64  `mapstructure:"MAX_FILE_SIZE_MB"`
	TempDir              string `mapstructure:"TEMP_DIR"`
	UploadRetentionHours int    `mapstructure:"UPLOAD_RETENTION_HOURS"`
}

// DatabaseConfig groups the settings needed to open the Postgres pool.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // minutes
	MaxConnIdleTime int // minutes
	LogLevel        string
}

type CacheConfig struct {
	Addr     string
	Password string
	DB       int
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
	MaxRetries    int
	Queues        map[string]int
}

type OCRConfig struct {
	Engine        string
	Languages     []string
	AzureEndpoint string
	AzureKey      string
}

type PipelineConfig struct {
	LayoutPath        string
	ScaleFactor       float64
	QRScaleFactor     float64
	FileTimeout       time.Duration
	BatchWorkers      int
	LockBackend       string
	LockTTL           time.Duration
	DedupEnableLevel2 bool
}

type StorageConfig struct {
	Source        string
	SourceDir     string
	TempDir       string
	MaxFileSizeMB int64
	// uploads left behind by a crash are purged after this long
	UploadRetention time.Duration
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioPrefix     string
	MinioUseSSL     bool
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found, using environment variables only")
		}
	}

	config := &Config{}

	// Set defaults
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "debug")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "8080")

	// Database defaults
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_NAME", "invoices")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONNECTIONS", 20)

	// Redis defaults
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)

	// Worker defaults
	viper.SetDefault("WORKER_CONCURRENCY", 4)
	viper.SetDefault("WORKER_MAX_RETRIES", 3)

	// OCR defaults
	viper.SetDefault("OCR_ENGINE", "tesseract")
	viper.SetDefault("OCR_LANGUAGES", "eng")

	// Pipeline defaults
	viper.SetDefault("SCALE_FACTOR", 2.0)
	viper.SetDefault("QR_SCALE_FACTOR", 3.0)
	viper.SetDefault("FILE_TIMEOUT_SECONDS", 60)
	viper.SetDefault("BATCH_WORKERS", 4)
	viper.SetDefault("LOCK_BACKEND", "memory")
	viper.SetDefault("LOCK_TTL_SECONDS", 30)
	viper.SetDefault("DEDUP_ENABLE_LEVEL2", true)

	// Source defaults
	viper.SetDefault("SOURCE", "local")
	viper.SetDefault("SOURCE_DIR", "data/files")
	viper.SetDefault("MINIO_PREFIX", "")
	viper.SetDefault("MINIO_USE_SSL", false)

	// File processing defaults
	viper.SetDefault("MAX_FILE_SIZE_MB", 20)
	viper.SetDefault("TEMP_DIR", "/tmp/invoices")
	viper.SetDefault("UPLOAD_RETENTION_HOURS", 24)

	// Bind environment variables
	viper.AutomaticEnv()

	config.Environment = viper.GetString("ENV")
	config.LogLevel = viper.GetString("LOG_LEVEL")
	config.ServerHost = viper.GetString("SERVER_HOST")
	config.ServerPort = viper.GetString("SERVER_PORT")

	// Database
	config.DBHost = viper.GetString("DB_HOST")
	config.DBPort = viper.GetString("DB_PORT")
	config.DBUser = viper.GetString("DB_USER")
	config.DBPassword = viper.GetString("DB_PASSWORD")
	config.DBName = viper.GetString("DB_NAME")
	config.DBSSLMode = viper.GetString("DB_SSLMODE")
	config.DBMaxConnections = viper.GetInt("DB_MAX_CONNECTIONS")

	// Redis
	config.RedisHost = viper.GetString("REDIS_HOST")
	config.RedisPort = viper.GetString("REDIS_PORT")
	config.RedisPassword = viper.GetString("REDIS_PASSWORD")
	config.RedisDB = viper.GetInt("REDIS_DB")

	// Worker
	config.WorkerConcurrency = viper.GetInt("WORKER_CONCURRENCY")
	config.WorkerMaxRetries = viper.GetInt("WORKER_MAX_RETRIES")
	config.WorkerQueuePriority = map[string]int{
		"critical": 6,
		"high":     3,
		"default":  1,
	}

	// OCR
	config.OCREngine = strings.ToLower(viper.GetString("OCR_ENGINE"))
	config.OCRLanguages = splitList(viper.GetString("OCR_LANGUAGES"))
	config.AzureOCREndpoint = viper.GetString("AZURE_OCR_ENDPOINT")
	config.AzureOCRKey = viper.GetString("AZURE_OCR_KEY")

	// Pipeline
	config.LayoutPath = viper.GetString("LAYOUT_PATH")
	config.ScaleFactor = viper.GetFloat64("SCALE_FACTOR")
	config.QRScaleFactor = viper.GetFloat64("QR_SCALE_FACTOR")
	config.FileTimeoutSeconds = viper.GetInt("FILE_TIMEOUT_SECONDS")
	config.BatchWorkers = viper.GetInt("BATCH_WORKERS")
	config.LockBackend = strings.ToLower(viper.GetString("LOCK_BACKEND"))
	config.LockTTLSeconds = viper.GetInt("LOCK_TTL_SECONDS")
	config.DedupEnableLevel2 = viper.GetBool("DEDUP_ENABLE_LEVEL2")

	// Source
	config.Source = strings.ToLower(viper.GetString("SOURCE"))
	config.SourceDir = viper.GetString("SOURCE_DIR")
	config.MinioEndpoint = viper.GetString("MINIO_ENDPOINT")
	config.MinioAccessKey = viper.GetString("MINIO_ACCESS_KEY")
	config.MinioSecretKey = viper.GetString("MINIO_SECRET_KEY")
	config.MinioBucket = viper.GetString("MINIO_BUCKET")
	config.MinioPrefix = viper.GetString("MINIO_PREFIX")
	config.MinioUseSSL = viper.GetBool("MINIO_USE_SSL")

	// File processing
	config.MaxFileSize = viper.GetInt64("MAX_FILE_SIZE_MB")
	config.TempDir = viper.GetString("TEMP_DIR")
	config.UploadRetentionHours = viper.GetInt("UPLOAD_RETENTION_HOURS")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks engine and source specific settings. Database credentials
// are checked separately since a dry run never opens the database.
func (c *Config) Validate() error {
	switch c.OCREngine {
	case "tesseract":
	case "azure":
		if c.AzureOCREndpoint == "" || c.AzureOCRKey == "" {
			return fmt.Errorf("AZURE_OCR_ENDPOINT and AZURE_OCR_KEY are required when OCR_ENGINE=azure")
		}
	default:
		return fmt.Errorf("unsupported OCR_ENGINE %q (expected tesseract or azure)", c.OCREngine)
	}

	switch c.Source {
	case "local":
	case "minio":
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" || c.MinioBucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET are required when SOURCE=minio")
		}
	default:
		return fmt.Errorf("unsupported SOURCE %q (expected local or minio)", c.Source)
	}

	if c.LockBackend != "memory" && c.LockBackend != "redis" {
		return fmt.Errorf("unsupported LOCK_BACKEND %q (expected memory or redis)", c.LockBackend)
	}
	if c.ScaleFactor <= 0 || c.QRScaleFactor <= 0 {
		return fmt.Errorf("SCALE_FACTOR and QR_SCALE_FACTOR must be positive")
	}
	if c.BatchWorkers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be at least 1")
	}

	return nil
}

// ValidateDatabase checks the credentials needed to open Postgres
func (c *Config) ValidateDatabase() error {
	if c.DBUser == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '+' || r == ' ' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetDatabaseURL constructs the PostgreSQL connection string
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// GetRedisURL constructs the Redis connection string
func (c *Config) GetRedisURL() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) Database() *DatabaseConfig {
	port, err := strconv.Atoi(c.DBPort)
	if err != nil {
		port = 5432
	}
	maxConns := c.DBMaxConnections
	if maxConns <= 0 {
		maxConns = 20
	}
	return &DatabaseConfig{
		Host:            c.DBHost,
		Port:            port,
		User:            c.DBUser,
		Password:        c.DBPassword,
		Database:        c.DBName,
		SSLMode:         c.DBSSLMode,
		MaxConnections:  maxConns,
		MinConnections:  maxConns / 4,
		MaxConnLifetime: 30,
		MaxConnIdleTime: 5,
		LogLevel:        c.LogLevel,
	}
}

func (c *Config) Cache() *CacheConfig {
	return &CacheConfig{
		Addr:     c.GetRedisURL(),
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c *Config) Queue() *QueueConfig {
	return &QueueConfig{
		RedisAddr:     c.GetRedisURL(),
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		Concurrency:   c.WorkerConcurrency,
		MaxRetries:    c.WorkerMaxRetries,
		Queues:        c.WorkerQueuePriority,
	}
}

func (c *Config) OCR() *OCRConfig {
	return &OCRConfig{
		Engine:        c.OCREngine,
		Languages:     c.OCRLanguages,
		AzureEndpoint: c.AzureOCREndpoint,
		AzureKey:      c.AzureOCRKey,
	}
}

func (c *Config) Pipeline() *PipelineConfig {
	return &PipelineConfig{
		LayoutPath:        c.LayoutPath,
		ScaleFactor:       c.ScaleFactor,
		QRScaleFactor:     c.QRScaleFactor,
		FileTimeout:       time.Duration(c.FileTimeoutSeconds) * time.Second,
		BatchWorkers:      c.BatchWorkers,
		LockBackend:       c.LockBackend,
		LockTTL:           time.Duration(c.LockTTLSeconds) * time.Second,
		DedupEnableLevel2: c.DedupEnableLevel2,
	}
}

func (c *Config) Storage() *StorageConfig {
	return &StorageConfig{
		Source:          c.Source,
		SourceDir:       c.SourceDir,
		TempDir:         c.TempDir,
		MaxFileSizeMB:   c.MaxFileSize,
		UploadRetention: time.Duration(c.UploadRetentionHours) * time.Hour,
		MinioEndpoint:   c.MinioEndpoint,
		MinioAccessKey:  c.MinioAccessKey,
		MinioSecretKey:  c.MinioSecretKey,
		MinioBucket:     c.MinioBucket,
		MinioPrefix:     c.MinioPrefix,
		MinioUseSSL:     c.MinioUseSSL,
	}
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LogConfig logs the configuration (hiding sensitive data)
func (c *Config) LogConfig() {
	log.Printf("Configuration loaded:")
	log.Printf("  Environment: %s", c.Environment)
	log.Printf("  Server: %s:%s", c.ServerHost, c.ServerPort)
	log.Printf("  Database: %s:%s/%s", c.DBHost, c.DBPort, c.DBName)
	log.Printf("  Redis: %s:%s (DB: %d)", c.RedisHost, c.RedisPort, c.RedisDB)
	log.Printf("  OCR Engine: %s (languages: %s)", c.OCREngine, strings.Join(c.OCRLanguages, ","))
	log.Printf("  Batch Workers: %d, file timeout: %ds", c.BatchWorkers, c.FileTimeoutSeconds)
	log.Printf("  Lock Backend: %s", c.LockBackend)
	log.Printf("  Source: %s", c.Source)

	if c.AzureOCRKey != "" {
		log.Printf("  Azure OCR Key: [CONFIGURED]")
	} else {
		log.Printf("  Azure OCR Key: [NOT SET]")
	}
	if c.MinioSecretKey != "" {
		log.Printf("  MinIO Secret: [CONFIGURED]")
	}
}
