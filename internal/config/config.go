package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL       string `env:"RABBITMQ_URL,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	S3Bucket          string `env:"S3_BUCKET,required=true"`
	S3Region          string `env:"S3_REGION,default=us-east-1"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	FetchTimeoutSecs  int    `env:"FETCH_TIMEOUT_SECS,default=10"`
	FetchRetries      int    `env:"FETCH_RETRIES,default=3"`
	FetchRatePerSec   int    `env:"FETCH_RATE_PER_SEC,default=50"`
	JPEGQuality       int    `env:"JPEG_QUALITY,default=50"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=4"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
