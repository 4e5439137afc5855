package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	once   sync.Once
	global *Config
)

// Config 服务配置
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Redis      RedisConfig      `yaml:"redis"`
	Queue      QueueConfig      `yaml:"queue"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Limits     LimitsConfig     `yaml:"limits"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Storage    StorageConfig    `yaml:"storage"`
	S3         S3Config         `yaml:"s3"`
	Minio      MinioConfig      `yaml:"minio"`
	Textract   TextractConfig   `yaml:"textract"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	Mode           string   `yaml:"mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int `yaml:"rate_limit"`
}

type LogConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"output_paths"`
	ErrorPaths  []string `yaml:"error_paths"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// QueueConfig selects how submitted jobs reach the scheduler:
// "inline" runs them in the API process, "asynq" hands them to cmd/worker.
type QueueConfig struct {
	Mode        string        `yaml:"mode"`
	Concurrency int           `yaml:"concurrency"`
	MaxRetries  int           `yaml:"max_retries"`
	Timeout     time.Duration `yaml:"timeout"`
}

type JobsConfig struct {
	Store     string        `yaml:"store"`
	KeyPrefix string        `yaml:"key_prefix"`
	Retention time.Duration `yaml:"retention"`
}

type LimitsConfig struct {
	MaxFileSize       int64    `yaml:"max_file_size"`
	MaxBatchFiles     int      `yaml:"max_batch_files"`
	Languages         []string `yaml:"languages"`
	DefaultLanguage   string   `yaml:"default_language"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type ExtractionConfig struct {
	// MaxConcurrent is the global admission limit shared by all jobs.
	MaxConcurrent int           `yaml:"max_concurrent"`
	Timeout       time.Duration `yaml:"timeout"`
	CacheEnabled  bool          `yaml:"cache_enabled"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	// OCR selects the text source for images: "textract" or "none".
	OCR string `yaml:"ocr"`
}

type StorageConfig struct {
	Type string `yaml:"type"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			Mode:           "release",
			AllowedOrigins: []string{"*"},
			RateLimit:      120,
		},
		Log: LogConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout", "logs/app.log"},
			ErrorPaths:  []string{"stderr", "logs/error.log"},
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Queue: QueueConfig{
			Mode:        "inline",
			Concurrency: 5,
			MaxRetries:  3,
			Timeout:     time.Hour,
		},
		Jobs: JobsConfig{
			Store:     "memory",
			KeyPrefix: "tender",
			Retention: 24 * time.Hour,
		},
		Limits: LimitsConfig{
			MaxFileSize:       50 * 1024 * 1024,
			MaxBatchFiles:     20,
			Languages:         []string{"nl", "en", "de", "fr"},
			DefaultLanguage:   "nl",
			AllowedExtensions: []string{".pdf", ".png", ".jpg", ".jpeg", ".tiff", ".txt"},
		},
		Extraction: ExtractionConfig{
			MaxConcurrent: 3,
			Timeout:       30 * time.Minute,
			CacheEnabled:  true,
			CacheTTL:      24 * time.Hour,
			OCR:           "none",
		},
		Storage: StorageConfig{Type: "memory"},
		S3:       S3Config{Region: "eu-west-1"},
		Minio:    MinioConfig{Region: "us-east-1"},
		Textract: TextractConfig{Region: "eu-west-1", MaxImageSide: 4096},
	}
}

// Load builds a Config from defaults, the optional YAML file at path, the
// project .env file and finally the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	loadDotEnv()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get 获取全局配置, reading TENDER_CONFIG on first use.
func Get() *Config {
	once.Do(func() {
		cfg, err := Load(os.Getenv("TENDER_CONFIG"))
		if err != nil {
			log.Printf("Warning: %v, falling back to defaults", err)
			cfg = Default()
		}
		global = cfg
	})
	return global
}

func loadDotEnv() {
	// 获取当前文件的目录
	_, filename, _, _ := runtime.Caller(0)
	rootDir := filepath.Dir(filepath.Dir(filename))
	envPath := filepath.Join(rootDir, ".env")

	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: .env file not found at %s, falling back to environment variables", envPath)
	}
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Extraction.MaxConcurrent < 1:
		return fmt.Errorf("invalid config: extraction.max_concurrent must be at least 1")
	case c.Extraction.Timeout <= 0:
		return fmt.Errorf("invalid config: extraction.timeout must be positive")
	case c.Limits.MaxBatchFiles < 1:
		return fmt.Errorf("invalid config: limits.max_batch_files must be at least 1")
	case c.Limits.MaxFileSize <= 0:
		return fmt.Errorf("invalid config: limits.max_file_size must be positive")
	case len(c.Limits.Languages) == 0:
		return fmt.Errorf("invalid config: limits.languages is empty")
	}
	if c.Queue.Mode != "inline" && c.Queue.Mode != "asynq" {
		return fmt.Errorf("invalid config: unknown queue mode %q", c.Queue.Mode)
	}
	if c.Queue.Mode == "asynq" && c.Jobs.Store != "redis" {
		return fmt.Errorf("invalid config: queue mode asynq needs the redis job store")
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "TENDER_ADDR")
	setString(&c.Server.Mode, "GIN_MODE")
	setList(&c.Server.AllowedOrigins, "TENDER_ALLOWED_ORIGINS")
	setString(&c.Log.Level, "TENDER_LOG_LEVEL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Queue.Mode, "TENDER_QUEUE_MODE")
	setString(&c.Jobs.Store, "TENDER_JOB_STORE")
	setString(&c.Storage.Type, "TENDER_STORAGE")
	setString(&c.Extraction.OCR, "TENDER_OCR")
	setString(&c.Limits.DefaultLanguage, "TENDER_DEFAULT_LANGUAGE")
	setList(&c.Limits.Languages, "TENDER_LANGUAGES")

	ints := []struct {
		dst *int
		key string
	}{
		{&c.Server.RateLimit, "TENDER_RATE_LIMIT"},
		{&c.Redis.DB, "REDIS_DB"},
		{&c.Queue.Concurrency, "TENDER_WORKER_CONCURRENCY"},
		{&c.Extraction.MaxConcurrent, "TENDER_MAX_CONCURRENT"},
		{&c.Limits.MaxBatchFiles, "TENDER_MAX_BATCH_FILES"},
	}
	for _, v := range ints {
		if err := setInt(v.dst, v.key); err != nil {
			return err
		}
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.Extraction.Timeout, "TENDER_EXTRACTION_TIMEOUT"},
		{&c.Extraction.CacheTTL, "TENDER_CACHE_TTL"},
		{&c.Jobs.Retention, "TENDER_JOB_RETENTION"},
	}
	for _, v := range durations {
		if err := setDuration(v.dst, v.key); err != nil {
			return err
		}
	}

	if raw := os.Getenv("TENDER_MAX_FILE_SIZE"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TENDER_MAX_FILE_SIZE: %w", err)
		}
		c.Limits.MaxFileSize = n
	}
	if raw := os.Getenv("TENDER_CACHE_ENABLED"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid TENDER_CACHE_ENABLED: %w", err)
		}
		c.Extraction.CacheEnabled = b
	}

	c.S3.applyEnv()
	c.Minio.applyEnv()
	c.Textract.applyEnv()
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
