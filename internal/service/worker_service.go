package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/transcode-engine/internal/domain"
	"github.com/kursadbilgin/transcode-engine/internal/fetcher"
	"github.com/kursadbilgin/transcode-engine/internal/notifier"
	"github.com/kursadbilgin/transcode-engine/internal/observability"
	"github.com/kursadbilgin/transcode-engine/internal/queue"
	"github.com/kursadbilgin/transcode-engine/internal/ratelimit"
	"github.com/kursadbilgin/transcode-engine/internal/repository"
	"github.com/kursadbilgin/transcode-engine/internal/storage"
	"github.com/kursadbilgin/transcode-engine/internal/transcoder"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	notifyTimeout        = 15 * time.Second
)

// ErrPartialFailure reports that a batch finished with at least one failed
// item. It propagates to the queue layer so the broker counts the delivery as
// a failed attempt and re-drives the job; stored outputs make the redelivery
// resume from the failed images only.
var ErrPartialFailure = errors.New("batch finished with failed items")

type WorkerService struct {
	requests    repository.RequestRepository
	attempts    repository.AttemptRepository
	consumer    queue.Consumer
	fetcher     fetcher.Fetcher
	transcoder  transcoder.Transcoder
	store       storage.ObjectStore
	notifier    notifier.Notifier
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
}

func NewWorkerService(
	requests repository.RequestRepository,
	attempts repository.AttemptRepository,
	consumer queue.Consumer,
	imageFetcher fetcher.Fetcher,
	imageTranscoder transcoder.Transcoder,
	store storage.ObjectStore,
	completionNotifier notifier.Notifier,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if requests == nil {
		return nil, fmt.Errorf("request repository is required")
	}
	if imageFetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if imageTranscoder == nil {
		return nil, fmt.Errorf("transcoder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		requests:    requests,
		attempts:    attempts,
		consumer:    consumer,
		fetcher:     imageFetcher,
		transcoder:  imageTranscoder,
		store:       store,
		notifier:    completionNotifier,
		rateLimiter: rateLimiter,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the work queue with a fixed-size worker pool until context
// cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.consumer == nil {
		return fmt.Errorf("consumer is required")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.WorkQueueName),
			)

			err := s.consumer.Consume(groupCtx, queue.WorkQueueName, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.JobMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}

	return s.ProcessBatch(ctx, msg.RequestID)
}

// ProcessBatch runs the full pipeline for one batch: load the record, claim
// it, process every item, persist the terminal status, and fire the
// completion callback. Items already carrying an output URL are skipped, so a
// redelivered job resumes instead of redoing finished work.
func (s *WorkerService) ProcessBatch(ctx context.Context, requestID string) error {
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("requestId", requestID))

	record, err := s.requests.GetByRequestID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to load batch request: %w", err)
	}

	claimed, err := s.requests.MarkProcessing(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to mark batch processing: %w", err)
	}
	if !claimed {
		logger.Info("batch already completed, skipping redelivery")
		return nil
	}

	if s.metrics != nil {
		s.metrics.IncWorkerInFlight()
		defer s.metrics.DecWorkerInFlight()
	}

	logger.Info("processing batch", zap.Int("items", len(record.Items)))

	for idx := range record.Items {
		if err := s.processItem(ctx, logger, record.RequestID, &record.Items[idx]); err != nil {
			return err
		}
	}

	finalStatus := domain.StatusCompleted
	if record.AnyItemFailed() {
		finalStatus = domain.StatusFailed
	}
	record.Status = finalStatus

	if err := s.requests.UpdateStatus(ctx, requestID, finalStatus); err != nil {
		return fmt.Errorf("failed to persist terminal batch status: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncBatchFinished(finalStatus.String())
	}

	logger.Info("batch finished", zap.String("status", finalStatus.String()))

	s.notifyCompletion(ctx, logger, record)

	if finalStatus == domain.StatusFailed {
		return ErrPartialFailure
	}
	return nil
}

// processItem processes every not-yet-done image of one item. The item row is
// persisted before the first image and after every attempt, so the progress
// fraction advances image by image and a crash mid-item leaves resumable
// state behind. The output list grows one entry per attempt; already-set
// entries from an earlier delivery are skipped.
func (s *WorkerService) processItem(ctx context.Context, logger *zap.Logger, requestID string, item *domain.Item) error {
	outputs := item.OutputURLs
	if len(outputs) > len(item.InputURLs) {
		outputs = outputs[:len(item.InputURLs)]
	}

	item.OutputURLs = outputs
	item.Status = domain.StatusProcessing
	if err := s.requests.UpdateItem(ctx, requestID, item); err != nil {
		return fmt.Errorf("failed to persist item %d: %w", item.SerialNumber, err)
	}

	for idx, inputURL := range item.InputURLs {
		if idx < len(outputs) && outputs[idx] != nil {
			continue
		}

		outputURL, stage, err := s.processImage(ctx, requestID, item.SerialNumber, idx, inputURL)
		s.recordAttempt(ctx, logger, requestID, item.SerialNumber, idx, stage, outputURL, err)

		var entry *string
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("image processing failed",
				zap.Int("serialNumber", item.SerialNumber),
				zap.Int("imageIndex", idx),
				zap.String("stage", stage),
				zap.Error(err),
			)
			if s.metrics != nil {
				s.metrics.IncImageProcessed("failed")
			}
		} else {
			entry = &outputURL
			if s.metrics != nil {
				s.metrics.IncImageProcessed("success")
			}
		}

		if idx < len(outputs) {
			outputs[idx] = entry
		} else {
			outputs = append(outputs, entry)
		}

		item.OutputURLs = outputs
		if err := s.requests.UpdateItem(ctx, requestID, item); err != nil {
			return fmt.Errorf("failed to persist item %d: %w", item.SerialNumber, err)
		}
	}

	item.OutputURLs = outputs
	if item.HasSentinel() {
		item.Status = domain.StatusFailed
	} else {
		item.Status = domain.StatusCompleted
	}

	if err := s.requests.UpdateItem(ctx, requestID, item); err != nil {
		return fmt.Errorf("failed to persist item %d: %w", item.SerialNumber, err)
	}
	if s.metrics != nil {
		s.metrics.IncItemFinished(item.Status.String())
	}

	return nil
}

// processImage runs fetch, transcode and store for one source image. It
// returns the stored object URL, or the stage that failed together with the
// error.
func (s *WorkerService) processImage(ctx context.Context, requestID string, serialNumber int, imageIndex int, inputURL string) (string, string, error) {
	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, ratelimit.ScopeFetch); err != nil {
			return "", domain.StageFetch, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	fetchStart := s.now()
	raw, err := s.fetcher.Fetch(ctx, inputURL)
	s.observeStage(domain.StageFetch, fetchStart)
	if err != nil {
		return "", domain.StageFetch, err
	}

	transcodeStart := s.now()
	encoded, err := s.transcoder.Transcode(raw)
	s.observeStage(domain.StageTranscode, transcodeStart)
	if err != nil {
		return "", domain.StageTranscode, err
	}

	key := storage.ObjectKey(requestID, serialNumber, imageIndex)
	storeStart := s.now()
	outputURL, err := s.store.Upload(ctx, key, transcoder.OutputContentType, encoded)
	s.observeStage(domain.StageStore, storeStart)
	if err != nil {
		return "", domain.StageStore, err
	}

	return outputURL, domain.StageStore, nil
}

func (s *WorkerService) observeStage(stage string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveStageDuration(stage, s.now().Sub(start))
}

// recordAttempt writes an audit row for one image outcome. The write is best
// effort; an audit failure never fails the image.
func (s *WorkerService) recordAttempt(
	ctx context.Context,
	logger *zap.Logger,
	requestID string,
	serialNumber int,
	imageIndex int,
	stage string,
	outputURL string,
	processErr error,
) {
	if s.attempts == nil {
		return
	}

	attempt := &domain.ImageAttempt{
		ID:           uuid.NewString(),
		RequestID:    requestID,
		SerialNumber: serialNumber,
		ImageIndex:   imageIndex,
		Stage:        stage,
		CreatedAt:    s.now().UTC(),
	}
	if processErr != nil {
		msg := processErr.Error()
		attempt.Error = &msg
	} else if outputURL != "" {
		attempt.OutputURL = &outputURL
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		logger.Warn("failed to record image attempt",
			zap.Int("serialNumber", serialNumber),
			zap.Int("imageIndex", imageIndex),
			zap.Error(err),
		)
	}
}

// notifyCompletion fires the webhook callback detached from the job context.
// Delivery is best effort; the persisted record stays the source of truth.
func (s *WorkerService) notifyCompletion(ctx context.Context, logger *zap.Logger, record *domain.BatchRequest) {
	if s.notifier == nil || record == nil {
		return
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		notifyCtx, cancel := context.WithTimeout(detached, notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(notifyCtx, record); err != nil {
			logger.Warn("completion webhook delivery failed", zap.Error(err))
		}
	}()
}
