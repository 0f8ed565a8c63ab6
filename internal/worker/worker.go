package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/katalog-core/internal/bmecat"
	"github.com/custodia-labs/katalog-core/internal/core/domain"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driven"
	"github.com/custodia-labs/katalog-core/internal/core/ports/driving"
)

// Worker processes catalog tasks from the task queue: imports, index syncs
// and full rebuilds.
type Worker struct {
	taskQueue driven.TaskQueue
	importer  driving.Importer
	indexer   driving.Indexer
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config holds configuration for the worker.
type Config struct {
	TaskQueue      driven.TaskQueue
	Importer       driving.Importer
	Indexer        driving.Indexer
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again
}

// New creates a new task worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		importer:       cfg.Importer,
		indexer:        cfg.Indexer,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	// Start worker goroutines
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	// Wait for all workers to finish
	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	// Wait for workers to finish
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		// Dequeue a task with timeout
		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if task == nil {
			// No task available, continue
			continue
		}

		// Process the task
		w.processTask(ctx, task, logger)
	}
}

// processTask processes a single task.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "catalog_id", task.CatalogID())
	logger.Info("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeImportCatalog:
		err = w.handleImportCatalog(ctx, task, logger)
	case domain.TaskTypeIndexCatalog:
		err = w.handleIndexCatalog(ctx, task, logger)
	case domain.TaskTypeRebuildIndex:
		err = w.handleRebuildIndex(ctx, task, logger)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		logger.Error("task failed",
			"duration", duration,
			"error", err,
		)

		// Nack the task so it can be retried
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)

	// Ack the task
	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// openRecordSource opens a catalog file and picks the parser by extension:
// .jsonl for normalized records, anything else is treated as BMEcat XML.
func (w *Worker) openRecordSource(path string) (domain.RecordSource, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return bmecat.NewJSONLSource(f, w.logger), f, nil
	}
	return bmecat.NewParser(f, filepath.Base(path), w.logger), f, nil
}

// handleImportCatalog handles an import_catalog task.
func (w *Worker) handleImportCatalog(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	path := task.Path()
	if path == "" {
		return fmt.Errorf("path not found in task payload")
	}

	src, f, err := w.openRecordSource(path)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := w.importer.ImportCatalog(ctx, task.CatalogID(), src, driving.ImportOptions{
		Replace: task.Flag("replace"),
	})
	if err != nil {
		return err
	}

	if result.Stats.Errors > 0 {
		// Partial batch failures are logged by the importer; the surviving
		// records are in, so the task itself is not retried.
		logger.Warn("import finished with batch errors",
			"imported", result.Stats.Imported,
			"errors", result.Stats.Errors,
		)
	}

	return nil
}

// handleIndexCatalog handles an index_catalog task.
func (w *Worker) handleIndexCatalog(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	catalogID := task.CatalogID()
	if catalogID == "" {
		return fmt.Errorf("catalog_id not found in task payload")
	}

	result, err := w.indexer.SyncCatalog(ctx, catalogID)
	if err != nil {
		return err
	}

	if result.Stats.EmbeddingFailures > 0 {
		logger.Warn("index sync degraded",
			"indexed", result.Stats.Indexed,
			"embedding_failures", result.Stats.EmbeddingFailures,
		)
	}

	return nil
}

// handleRebuildIndex handles a rebuild_index task.
func (w *Worker) handleRebuildIndex(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	result, err := w.indexer.RebuildAll(ctx)
	if err != nil {
		return err
	}

	logger.Info("index rebuilt",
		"indexed", result.Stats.Indexed,
		"embedding_failures", result.Stats.EmbeddingFailures,
	)
	return nil
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	// Check queue health
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
