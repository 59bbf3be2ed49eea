package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type MinIO struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
	Region     string
	PublicURL  string
}

type Sweep struct {
	Schedule       string
	Concurrency    int
	Timeout        time.Duration
	LockTTL        time.Duration
	PublishTimeout time.Duration
	SuccessRate    float64
	StatusPolicy   string
}

type Config struct {
	ServerAddr        string
	PostgresURI       string
	RedisURI          string
	FrontendURL       string
	SecretKey         string
	CookieName        string
	WorkerConcurrency int
	StorageDriver     string
	MaxUploadSize     int64
	Sweep             Sweep
	R2                R2
	MinIO             MinIO
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr:        getEnv("SERVER_ADDR", ":3000"),
		PostgresURI:       getEnv("POSTGRES_URI", ""),
		RedisURI:          getEnv("REDIS_URI", "localhost:6379"),
		FrontendURL:       getEnv("FRONTEND_URL", "http://localhost:5173"),
		SecretKey:         getEnv("SECRET_KEY", ""),
		CookieName:        getEnv("COOKIE_NAME", "crosspost_token"),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 10),
		StorageDriver:     getEnv("STORAGE_DRIVER", "r2"),
		MaxUploadSize:     int64(getEnvAsInt("MAX_UPLOAD_SIZE", 10*1024*1024)),
		Sweep: Sweep{
			Schedule:       getEnv("SWEEP_SCHEDULE", "@every 1m"),
			Concurrency:    getEnvAsInt("SWEEP_CONCURRENCY", 10),
			Timeout:        getEnvAsDuration("SWEEP_TIMEOUT", 5*time.Minute),
			LockTTL:        getEnvAsDuration("SWEEP_LOCK_TTL", 2*time.Minute),
			PublishTimeout: getEnvAsDuration("PUBLISH_TIMEOUT", 10*time.Second),
			SuccessRate:    getEnvAsFloat("PUBLISH_SUCCESS_RATE", 0.95),
			StatusPolicy:   getEnv("POST_STATUS_POLICY", "unconditional"),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		MinIO: MinIO{
			Endpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
			BucketName: getEnv("MINIO_BUCKET_NAME", "images"),
			UseSSL:     getEnvBool("MINIO_USE_SSL", false),
			Region:     getEnv("MINIO_REGION", "us-east-1"),
			PublicURL:  getEnv("MINIO_PUBLIC_URL", "http://localhost:9000/images"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
