package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kursadbilgin/transcode-engine/internal/config"
	"github.com/kursadbilgin/transcode-engine/internal/fetcher"
	"github.com/kursadbilgin/transcode-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/transcode-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/transcode-engine/internal/infra/redis"
	"github.com/kursadbilgin/transcode-engine/internal/notifier"
	"github.com/kursadbilgin/transcode-engine/internal/observability"
	"github.com/kursadbilgin/transcode-engine/internal/queue"
	"github.com/kursadbilgin/transcode-engine/internal/repository"
	"github.com/kursadbilgin/transcode-engine/internal/service"
	"github.com/kursadbilgin/transcode-engine/internal/storage"
	"github.com/kursadbilgin/transcode-engine/internal/transcoder"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.FetchRatePerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	consumer := queue.NewRabbitMQConsumer(mq, cfg.WorkerConcurrency, logger)
	defer consumer.Close()

	store, err := newObjectStore(cfg)
	if err != nil {
		logger.Fatal("object store initialization failed", zap.Error(err))
	}

	worker, err := service.NewWorkerService(
		repository.NewGormRequestRepo(db),
		repository.NewGormAttemptRepo(db),
		consumer,
		fetcher.NewHTTPFetcher(time.Duration(cfg.FetchTimeoutSecs)*time.Second, cfg.FetchRetries),
		transcoder.NewJPEGTranscoder(cfg.JPEGQuality),
		store,
		notifier.NewWebhookNotifier(),
		rateLimiter,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("worker service initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	worker.SetMetrics(metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go serveMetrics(logger, cfg.APIPort, metrics)

	logger.Info("transcode-engine worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.String("queue", queue.WorkQueueName),
	)

	if err := worker.Start(ctx); err != nil {
		logger.Fatal("worker stopped with error", zap.Error(err))
	}

	logger.Info("worker stopped")
}

func serveMetrics(logger *zap.Logger, port int, metrics *observability.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

func newObjectStore(cfg *config.Config) (*storage.S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(
		context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = &cfg.S3Endpoint
			o.UsePathStyle = true
		}
	})

	return storage.NewS3Store(client, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint)
}
