package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the GenomeGuard server.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Pipeline   PipelineConfig
	Annotation AnnotationConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type PipelineConfig struct {
	Workers         int
	JobTimeout      time.Duration
	UploadMaxBytes  int64
	RateLimitPerMin int
}

type AnnotationConfig struct {
	Provider          string
	KnowledgeBasePath string
	MyVariant         MyVariantConfig
}

type MyVariantConfig struct {
	BaseURL string
	Timeout time.Duration
}

var validProviders = map[string]bool{
	"local":     true,
	"myvariant": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("GENOMEGUARD_PORT", 8080),
			Env:  envString("GENOMEGUARD_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Pipeline: PipelineConfig{
			Workers:         envInt("PIPELINE_WORKERS", 4),
			JobTimeout:      envDuration("PIPELINE_JOB_TIMEOUT", 5*time.Minute),
			UploadMaxBytes:  envInt64("UPLOAD_MAX_BYTES", 16<<20),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Annotation: AnnotationConfig{
			Provider:          envString("ANNOTATION_PROVIDER", "local"),
			KnowledgeBasePath: os.Getenv("KNOWLEDGE_BASE_PATH"),
			MyVariant: MyVariantConfig{
				BaseURL: envString("MYVARIANT_BASE_URL", "https://myvariant.info/v1"),
				Timeout: envDuration("MYVARIANT_TIMEOUT", 10*time.Second),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.JobTimeout <= 0 {
		return fmt.Errorf("PIPELINE_JOB_TIMEOUT must be positive, got %s", c.Pipeline.JobTimeout)
	}
	if c.Pipeline.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.Pipeline.UploadMaxBytes)
	}

	if !validProviders[c.Annotation.Provider] {
		return fmt.Errorf("ANNOTATION_PROVIDER must be one of local, myvariant; got %q", c.Annotation.Provider)
	}

	if c.Annotation.Provider == "myvariant" {
		base := c.Annotation.MyVariant.BaseURL
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			return fmt.Errorf("MYVARIANT_BASE_URL must start with http:// or https://, got %q", base)
		}
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
