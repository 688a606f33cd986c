package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kursadbilgin/transcode-engine/internal/domain"
	"github.com/kursadbilgin/transcode-engine/internal/queue"
	"go.uber.org/zap"
)

type fakeRequestRepo struct {
	createFn         func(ctx context.Context, b *domain.BatchRequest) error
	getByRequestIDFn func(ctx context.Context, requestID string) (*domain.BatchRequest, error)
	markProcessingFn func(ctx context.Context, requestID string) (bool, error)
	updateStatusFn   func(ctx context.Context, requestID string, status domain.Status) error
	updateItemFn     func(ctx context.Context, requestID string, item *domain.Item) error
}

func (f *fakeRequestRepo) Create(ctx context.Context, b *domain.BatchRequest) error {
	if f.createFn == nil {
		return nil
	}
	return f.createFn(ctx, b)
}

func (f *fakeRequestRepo) GetByRequestID(ctx context.Context, requestID string) (*domain.BatchRequest, error) {
	if f.getByRequestIDFn == nil {
		return nil, domain.ErrNotFound
	}
	return f.getByRequestIDFn(ctx, requestID)
}

func (f *fakeRequestRepo) MarkProcessing(ctx context.Context, requestID string) (bool, error) {
	if f.markProcessingFn == nil {
		return true, nil
	}
	return f.markProcessingFn(ctx, requestID)
}

func (f *fakeRequestRepo) UpdateStatus(ctx context.Context, requestID string, status domain.Status) error {
	if f.updateStatusFn == nil {
		return nil
	}
	return f.updateStatusFn(ctx, requestID, status)
}

func (f *fakeRequestRepo) UpdateItem(ctx context.Context, requestID string, item *domain.Item) error {
	if f.updateItemFn == nil {
		return nil
	}
	return f.updateItemFn(ctx, requestID, item)
}

type fakeAttemptRepo struct {
	createFn func(ctx context.Context, a *domain.ImageAttempt) error
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.ImageAttempt) error {
	if f.createFn == nil {
		return nil
	}
	return f.createFn(ctx, a)
}

func (f *fakeAttemptRepo) GetByRequestID(ctx context.Context, requestID string) ([]domain.ImageAttempt, error) {
	return nil, nil
}

type fakeFetcher struct {
	fetchFn func(ctx context.Context, url string) ([]byte, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.fetchFn == nil {
		return []byte("raw"), nil
	}
	return f.fetchFn(ctx, url)
}

type fakeTranscoder struct {
	transcodeFn func(data []byte) ([]byte, error)
}

func (f *fakeTranscoder) Transcode(data []byte) ([]byte, error) {
	if f.transcodeFn == nil {
		return []byte("jpeg"), nil
	}
	return f.transcodeFn(data)
}

type fakeStore struct {
	uploadFn func(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

func (f *fakeStore) Upload(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	if f.uploadFn == nil {
		return "https://bucket.example.com/" + key, nil
	}
	return f.uploadFn(ctx, key, contentType, data)
}

type fakeNotifier struct {
	notifyFn func(ctx context.Context, record *domain.BatchRequest) error
}

func (f *fakeNotifier) Notify(ctx context.Context, record *domain.BatchRequest) error {
	if f.notifyFn == nil {
		return nil
	}
	return f.notifyFn(ctx, record)
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, scope string) (bool, error)
	waitFn  func(ctx context.Context, scope string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	if f.allowFn == nil {
		return true, nil
	}
	return f.allowFn(ctx, scope)
}

func (f *fakeRateLimiter) Wait(ctx context.Context, scope string) error {
	if f.waitFn == nil {
		return nil
	}
	return f.waitFn(ctx, scope)
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn == nil {
		return nil
	}
	return f.consumeFn(ctx, queueName, handler)
}

func (f *fakeConsumer) Close() error { return nil }

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.JobMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.JobMessage) error {
	if f.publishFn == nil {
		return nil
	}
	return f.publishFn(ctx, queueName, msg)
}

func (f *fakePublisher) Close() error { return nil }

func newTestWorker(t *testing.T, repo *fakeRequestRepo, opts ...func(*WorkerService)) *WorkerService {
	t.Helper()

	worker, err := NewWorkerService(
		repo,
		&fakeAttemptRepo{},
		&fakeConsumer{},
		&fakeFetcher{},
		&fakeTranscoder{},
		&fakeStore{},
		&fakeNotifier{},
		&fakeRateLimiter{},
		2,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}
	worker.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	for _, opt := range opts {
		opt(worker)
	}
	return worker
}

func strPtr(s string) *string { return &s }

func TestWorkerServiceProcessBatchAllSucceed(t *testing.T) {
	t.Parallel()

	record := &domain.BatchRequest{
		RequestID: "req-1",
		Status:    domain.StatusPending,
		Items: []domain.Item{
			{SerialNumber: 1, ProductName: "Alpha", InputURLs: []string{"https://img/a1", "https://img/a2"}, Status: domain.StatusPending},
			{SerialNumber: 2, ProductName: "Beta", InputURLs: []string{"https://img/b1"}, Status: domain.StatusPending},
		},
		WebhookURL: strPtr("https://callback.example.com/hook"),
	}

	finalItems := map[int]domain.Item{}
	var finalStatus domain.Status
	repo := &fakeRequestRepo{
		getByRequestIDFn: func(ctx context.Context, requestID string) (*domain.BatchRequest, error) {
			return record, nil
		},
		updateItemFn: func(ctx context.Context, requestID string, item *domain.Item) error {
			finalItems[item.SerialNumber] = *item
			return nil
		},
		updateStatusFn: func(ctx context.Context, requestID string, status domain.Status) error {
			finalStatus = status
			return nil
		},
	}

	notified := make(chan *domain.BatchRequest, 1)
	waitCalls := 0
	worker := newTestWorker(t, repo, func(w *WorkerService) {
		w.notifier = &fakeNotifier{
			notifyFn: func(ctx context.Context, r *domain.BatchRequest) error {
				notified <- r
				return nil
			},
		}
		w.rateLimiter = &fakeRateLimiter{
			waitFn: func(ctx context.Context, scope string) error {
				if scope != "fetch" {
					t.Errorf("rate limit scope = %q, want fetch", scope)
				}
				waitCalls++
				return nil
			},
		}
	})

	if err := worker.ProcessBatch(context.Background(), "req-1"); err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}

	if finalStatus != domain.StatusCompleted {
		t.Fatalf("final status = %s, want completed", finalStatus)
	}
	if waitCalls != 3 {
		t.Fatalf("rate limiter waits = %d, want 3", waitCalls)
	}
	if len(finalItems) != 2 {
		t.Fatalf("persisted items = %d, want 2", len(finalItems))
	}
	for _, item := range finalItems {
		if item.Status != domain.StatusCompleted {
			t.Fatalf("item %d status = %s, want completed", item.SerialNumber, item.Status)
		}
		if len(item.OutputURLs) != len(item.InputURLs) {
			t.Fatalf("item %d outputs = %d, want %d", item.SerialNumber, len(item.OutputURLs), len(item.InputURLs))
		}
		for idx, out := range item.OutputURLs {
			if out == nil {
				t.Fatalf("item %d output %d is nil", item.SerialNumber, idx)
			}
		}
	}

	select {
	case got := <-notified:
		if got.Status != domain.StatusCompleted {
			t.Fatalf("notified status = %s, want completed", got.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("expected completion notification")
	}
}

func TestWorkerServiceProcessBatchPartialFailure(t *testing.T) {
	t.Parallel()

	record := &domain.BatchRequest{
		RequestID: "req-2",
		Status:    domain.StatusPending,
		Items: []domain.Item{
			{SerialNumber: 1, ProductName: "Alpha", InputURLs: []string{"https://img/ok", "https://img/broken"}, Status: domain.StatusPending},
			{SerialNumber: 2, ProductName: "Beta", InputURLs: []string{"https://img/ok"}, Status: domain.StatusPending},
		},
		WebhookURL: strPtr("https://callback.example.com/hook"),
	}

	finalItems := map[int]domain.Item{}
	var finalStatus domain.Status
	repo := &fakeRequestRepo{
		getByRequestIDFn: func(ctx context.Context, requestID string) (*domain.BatchRequest, error) {
			return record, nil
		},
		updateItemFn: func(ctx context.Context, requestID string, item *domain.Item) error {
			finalItems[item.SerialNumber] = *item
			return nil
		},
		updateStatusFn: func(ctx context.Context, requestID string, status domain.Status) error {
			finalStatus = status
			return nil
		},
	}

	notified := make(chan *domain.BatchRequest, 1)
	worker := newTestWorker(t, repo, func(w *WorkerService) {
		w.fetcher = &fakeFetcher{
			fetchFn: func(ctx context.Context, url string) ([]byte, error) {
				if url == "https://img/broken" {
					return nil, errors.New("connection refused")
				}
				return []byte("raw"), nil
			},
		}
		w.notifier = &fakeNotifier{
			notifyFn: func(ctx context.Context, r *domain.BatchRequest) error {
				notified <- r
				return nil
			},
		}
	})

	err := worker.ProcessBatch(context.Background(), "req-2")
	if !errors.Is(err, ErrPartialFailure) {
		t.Fatalf("ProcessBatch() error = %v, want ErrPartialFailure", err)
	}

	if finalStatus != domain.StatusFailed {
		t.Fatalf("final status = %s, want failed", finalStatus)
	}
	if len(finalItems) != 2 {
		t.Fatalf("persisted items = %d, want 2", len(finalItems))
	}

	first := finalItems[1]
	if first.Status != domain.StatusFailed {
		t.Fatalf("item 1 status = %s, want failed", first.Status)
	}
	if first.OutputURLs[0] == nil {
		t.Fatal("item 1 output 0 should be set")
	}
	if first.OutputURLs[1] != nil {
		t.Fatal("item 1 output 1 should be the nil sentinel")
	}

	if finalItems[2].Status != domain.StatusCompleted {
		t.Fatalf("item 2 status = %s, want completed", finalItems[2].Status)
	}

	select {
	case got := <-notified:
		if got.Status != domain.StatusFailed {
			t.Fatalf("notified status = %s, want failed", got.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("expected completion notification")
	}
}

func TestWorkerServiceProcessMessageSignalsPartialFailure(t *testing.T) {
	t.Parallel()

	record := &domain.BatchRequest{
		RequestID: "req-3",
		Status:    domain.StatusPending,
		Items: []domain.Item{
			{SerialNumber: 1, ProductName: "Alpha", InputURLs: []string{"https://img/broken"}, Status: domain.StatusPending},
		},
	}

	repo := &fakeRequestRepo{
		getByRequestIDFn: func(ctx context.Context, requestID string) (*domain.BatchRequest, error) {
			return record, nil
		},
	}
	worker := newTestWorker(t, repo, func(w *WorkerService) {
		w.fetcher = &fakeFetcher{
			fetchFn: func(ctx context.Context, url string) ([]byte, error) {
				return nil, errors.New("connection refused")
			},
		}
	})

	// A failed batch must surface as a handler error so the broker counts
	// the delivery as a failed attempt and re-drives the job; a nil return
	// would ack the message and lose the retry.
	err := worker.processMessage(context.Background(), queue.JobMessage{RequestID: "req-3"})
	if !errors.Is(err, ErrPartialFailure) {
		t.Fatalf("processMessage() error = %v, want ErrPartialFailure", err)
	}
}

func TestWorkerServiceProcessItemPersistsPerImageProgress(t *testing.T) {
	t.Parallel()

	record := &domain.BatchRequest{
		RequestID: "req-8",
		Status:    domain.StatusPending,
		Items: []domain.Item{
			{
				SerialNumber: 1,
				ProductName:  "Alpha",
				InputURLs:    []string{"https://img/a1", "https://img/broken", "https://img/a3"},
				Status:       domain.StatusPending,
			},
		},
	}

	var snapshots []domain.Item
	repo := &fakeRequestRepo{
		getByRequestIDFn: func(ctx context.Context, requestID string) (*domain.BatchRequest, error) {
			return record, nil
		},
		updateItemFn: func(ctx context.Context, requestID string, item *domain.Item) error {
			copied := *item
			copied.OutputURLs = append([]*string(nil), item.OutputURLs...)
			snapshots = append(snapshots, copied)
			return nil
		},
	}
	worker := newTestWorker(t, repo, func(w *WorkerService) {
		w.fetcher = &fakeFetcher{
			fetchFn: func(ctx context.Context, url string) ([]byte, error) {
				if url == "https://img/broken" {
					return nil, errors.New("connection refused")
				}
				return []byte("raw"), nil
			},
		}
	})

	err := worker.ProcessBatch(context.Background(), "req-8")
	if !errors.Is(err, ErrPartialFailure) {
		t.Fatalf("ProcessBatch() error = %v, want ErrPartialFailure", err)
	}

	// One claim write, one write per image attempt, one terminal write.
	if len(snapshots) != 5 {
		t.Fatalf("item persists = %d, want 5", len(snapshots))
	}

	if snapshots[0].Status != domain.StatusProcessing {
		t.Fatalf("first persist status = %s, want processing", snapshots[0].Status)
	}
	if len(snapshots[0].OutputURLs) != 0 {
		t.Fatalf("first persist outputs = %d, want 0", len(snapshots[0].OutputURLs))
	}

	for i := 1; i <= 3; i++ {
		snap := snapshots[i]
		if snap.Status != domain.StatusProcessing {
			t.Fatalf("persist %d status = %s, want processing", i, snap.Status)
		}
		if len(snap.OutputURLs) != i {
			t.Fatalf("persist %d outputs = %d, want %d", i, len(snap.OutputURLs), i)
		}
		if got := snap.Progress(); got != float64(i)/3 {
			t.Fatalf("persist %d progress = %v, want %v", i, got, float64(i)/3)
		}
	}
	if snapshots[2].OutputURLs[1] != nil {
		t.Fatal("failed image should persist the nil sentinel mid-run")
	}

	last := snapshots[4]
	if last.Status != domain.StatusFailed {
		t.Fatalf("terminal persist status = %s, want failed", last.Status)
	}
	if len(last.OutputURLs) != 3 {
		t.Fatalf("terminal outputs = %d, want 3", len(last.OutputURLs))
	}
}

func TestWorkerServiceFailedBatchRedeliveryConverges(t *testing.T) {
	t.Parallel()

	// A batch that failed on an earlier delivery is re-driven by the broker.
	// Only the sentinel image is retried; when it now succeeds the batch
	// converges to completed.
	record := &domain.BatchRequest{
		RequestID: "req-9",
		Status:    domain.StatusFailed,
		Items: []domain.Item{
			{
				SerialNumber: 3,
				ProductName:  "Delta",
				InputURLs:    []string{"https://img/done", "https://img/flaky"},
				OutputURLs:   []*string{strPtr("https://out/existing"), nil},
				Status:       domain.StatusFailed,
			},
		},
	}

	var fetchedURLs []string
	var lastItem domain.Item
	var finalStatus domain.Status
	repo := &fakeRequestRepo{
		getByRequestIDFn: func(ctx context.Context, requestID string) (*domain.BatchRequest, error) {
			return record, nil
		},
		updateItemFn: func(ctx context.Context, requestID string, item *domain.Item) error {
			lastItem = *item
			return nil
		},
		updateStatusFn: func(ctx context.Context, requestID string, status domain.Status) error {
			finalStatus = status
			return nil
		},
	}
	worker := newTestWorker(t, repo, func(w *WorkerService) {
		w.fetcher = &fakeFetcher{
			fetchFn: func(ctx context.Context, url string) ([]byte, error) {
				fetchedURLs = append(fetchedURLs, url)
				return []byte("raw"), nil
			},
		}
	})

	if err := worker.ProcessBatch(context.Background(), "req-9"); err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}

	if len(fetchedURLs) != 1 || fetchedURLs[0] != "https://img/flaky" {
		t.Fatalf("fetched urls = %v, want only the previously failed image", fetchedURLs)
	}
	if finalStatus != domain.StatusCompleted {
		t.Fatalf("final status = %s, want completed", finalStatus)
	}
	if lastItem.Status != domain.StatusCompleted {
		t.Fatalf("item status = %s, want completed", lastItem.Status)
	}
	if lastItem.OutputURLs[0] == nil || *lastItem.OutputURLs[0] != "https://out/existing" {
		t.Fatal("existing output should be preserved across redelivery")
	}
	if lastItem.OutputURLs[1] == nil {
		t.Fatal("retried image should carry a fresh output url")
	}
}

func TestWorkerServiceProcessBatchMissingRecord(t *testing.T) {
	t.Parallel()

	markCalled := false
	repo := &fakeRequestRepo{
		getByRequestIDFn: func(ctx context.Context, requestID string) (*domain.BatchRequest, error) {
			return nil, domain.ErrNotFound
		},
		markProcessingFn: func(ctx context.Context, requestID string) (bool, error) {
			markCalled = true
			return true, nil
		},
	}
	worker := newTestWorker(t, repo)

	err := worker.ProcessBatch(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ProcessBatch() error = %v, want ErrNotFound", err)
	}
	if markCalled {
		t.Fatal("missing record should not be claimed")
	}
}

func TestWorkerServiceProcessBatchSkipsCompletedRedelivery(t *testing.T) {
	t.Parallel()

	record := &domain.BatchRequest{
		RequestID: "req-4",
		Status:    domain.StatusCompleted,
		Items: []domain.Item{
			{SerialNumber: 1, ProductName: "Alpha", InputURLs: []string{"https://img/a1"}, OutputURLs: []*string{strPtr("https://out/a1")}, Status: domain.StatusCompleted},
		},
	}

	fetchCalls := 0
	notifyCalls := 0
	repo := &fakeRequestRepo{
		getByRequestIDFn: func(ctx context.Context, requestID string) (*domain.BatchRequest, error) {
			return record, nil
		},
		markProcessingFn: func(ctx context.Context, requestID string) (bool, error) {
			return false, nil
		},
	}
	worker := newTestWorker(t, repo, func(w *WorkerService) {
		w.fetcher = &fakeFetcher{
			fetchFn: func(ctx context.Context, url string) ([]byte, error) {
				fetchCalls++
				return []byte("raw"), nil
			},
		}
		w.notifier = &fakeNotifier{
			notifyFn: func(ctx context.Context, r *domain.BatchRequest) error {
				notifyCalls++
				return nil
			},
		}
	})

	if err := worker.ProcessBatch(context.Background(), "req-4"); err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if fetchCalls != 0 {
		t.Fatalf("fetch calls = %d, want 0 for completed batch", fetchCalls)
	}
	if notifyCalls != 0 {
		t.Fatalf("notify calls = %d, want 0 for completed batch", notifyCalls)
	}
}

func TestWorkerServiceProcessBatchResumesPartialProgress(t *testing.T) {
	t.Parallel()

	record := &domain.BatchRequest{
		RequestID: "req-5",
		Status:    domain.StatusProcessing,
		Items: []domain.Item{
			{
				SerialNumber: 7,
				ProductName:  "Gamma",
				InputURLs:    []string{"https://img/done", "https://img/pending"},
				OutputURLs:   []*string{strPtr("https://out/existing"), nil},
				Status:       domain.StatusProcessing,
			},
		},
	}

	var fetchedURLs []string
	var uploadedKeys []string
	var updatedItem domain.Item
	repo := &fakeRequestRepo{
		getByRequestIDFn: func(ctx context.Context, requestID string) (*domain.BatchRequest, error) {
			return record, nil
		},
		updateItemFn: func(ctx context.Context, requestID string, item *domain.Item) error {
			updatedItem = *item
			return nil
		},
	}
	worker := newTestWorker(t, repo, func(w *WorkerService) {
		w.fetcher = &fakeFetcher{
			fetchFn: func(ctx context.Context, url string) ([]byte, error) {
				fetchedURLs = append(fetchedURLs, url)
				return []byte("raw"), nil
			},
		}
		w.store = &fakeStore{
			uploadFn: func(ctx context.Context, key string, contentType string, data []byte) (string, error) {
				uploadedKeys = append(uploadedKeys, key)
				return "https://out/" + key, nil
			},
		}
	})

	if err := worker.ProcessBatch(context.Background(), "req-5"); err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}

	if len(fetchedURLs) != 1 || fetchedURLs[0] != "https://img/pending" {
		t.Fatalf("fetched urls = %v, want only the unfinished image", fetchedURLs)
	}
	if len(uploadedKeys) != 1 || uploadedKeys[0] != "processed/req-5/7-1.jpg" {
		t.Fatalf("uploaded keys = %v, want deterministic key for index 1", uploadedKeys)
	}
	if updatedItem.OutputURLs[0] == nil || *updatedItem.OutputURLs[0] != "https://out/existing" {
		t.Fatal("existing output should be preserved on resume")
	}
	if updatedItem.OutputURLs[1] == nil {
		t.Fatal("resumed image should carry a fresh output url")
	}
	if updatedItem.Status != domain.StatusCompleted {
		t.Fatalf("item status = %s, want completed", updatedItem.Status)
	}
}

func TestWorkerServiceProcessBatchPersistFailureSurfaces(t *testing.T) {
	t.Parallel()

	record := &domain.BatchRequest{
		RequestID: "req-6",
		Status:    domain.StatusPending,
		Items: []domain.Item{
			{SerialNumber: 1, ProductName: "Alpha", InputURLs: []string{"https://img/a1"}, Status: domain.StatusPending},
		},
	}

	persistErr := errors.New("connection reset")
	repo := &fakeRequestRepo{
		getByRequestIDFn: func(ctx context.Context, requestID string) (*domain.BatchRequest, error) {
			return record, nil
		},
		updateItemFn: func(ctx context.Context, requestID string, item *domain.Item) error {
			return persistErr
		},
	}
	worker := newTestWorker(t, repo)

	err := worker.ProcessBatch(context.Background(), "req-6")
	if !errors.Is(err, persistErr) {
		t.Fatalf("ProcessBatch() error = %v, want persistence error", err)
	}
}

func TestWorkerServiceRecordsFailedStageInAttempts(t *testing.T) {
	t.Parallel()

	record := &domain.BatchRequest{
		RequestID: "req-7",
		Status:    domain.StatusPending,
		Items: []domain.Item{
			{SerialNumber: 1, ProductName: "Alpha", InputURLs: []string{"https://img/a1"}, Status: domain.StatusPending},
		},
	}

	var attempts []domain.ImageAttempt
	repo := &fakeRequestRepo{
		getByRequestIDFn: func(ctx context.Context, requestID string) (*domain.BatchRequest, error) {
			return record, nil
		},
	}
	worker := newTestWorker(t, repo, func(w *WorkerService) {
		w.transcoder = &fakeTranscoder{
			transcodeFn: func(data []byte) ([]byte, error) {
				return nil, fmt.Errorf("unsupported image format")
			},
		}
		w.attempts = &fakeAttemptRepo{
			createFn: func(ctx context.Context, a *domain.ImageAttempt) error {
				attempts = append(attempts, *a)
				return nil
			},
		}
	})

	err := worker.ProcessBatch(context.Background(), "req-7")
	if !errors.Is(err, ErrPartialFailure) {
		t.Fatalf("ProcessBatch() error = %v, want ErrPartialFailure", err)
	}

	if len(attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(attempts))
	}
	if attempts[0].Stage != domain.StageTranscode {
		t.Fatalf("attempt stage = %s, want transcode", attempts[0].Stage)
	}
	if attempts[0].Error == nil {
		t.Fatal("failed attempt should carry the error message")
	}
	if attempts[0].OutputURL != nil {
		t.Fatal("failed attempt should not carry an output url")
	}
}
