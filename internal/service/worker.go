package service

import (
	"context"
	"sync"
	"time"

	"github.com/feliks/curio/internal/domain"
	"github.com/feliks/curio/internal/extract"
	"github.com/feliks/curio/internal/logger"
	"github.com/feliks/curio/internal/repository"
)

// ContentExtractor is the strategy-chain surface the worker drives.
// Satisfied by extract.Extractor.
type ContentExtractor interface {
	Extract(ctx context.Context, req extract.Request) (*extract.Result, error)
}

// Worker drains the in-process ingestion queue. Entries are processed
// strictly in arrival order by a single drainer goroutine, which bounds
// outbound request concurrency to the extraction providers and rules out two
// simultaneous extractions of the same item.
//
// The queue has no durable backing: a process restart loses queued entries
// and pending retry timers. Items stuck in pending can be pushed through
// again via reprocess.
type Worker struct {
	repo      *repository.ContentRepository
	extractor ContentExtractor
	indexer   *Indexer
	logger    *logger.Logger

	maxRetries int
	baseDelay  time.Duration

	mu       sync.Mutex
	queue    []domain.QueueEntry
	draining bool

	// idle is closed and replaced whenever the drainer parks; tests use
	// WaitIdle to observe queue quiescence.
	idle chan struct{}
}

// WorkerConfig holds the retry policy of the ingestion worker.
type WorkerConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// NewWorker creates a Worker. The worker is passive until the first Enqueue.
func NewWorker(
	repo *repository.ContentRepository,
	extractor ContentExtractor,
	indexer *Indexer,
	log *logger.Logger,
	cfg *WorkerConfig,
) *Worker {
	maxRetries := 3
	baseDelay := 5 * time.Second
	if cfg != nil {
		if cfg.MaxRetries > 0 {
			maxRetries = cfg.MaxRetries
		}
		if cfg.RetryBaseDelay > 0 {
			baseDelay = cfg.RetryBaseDelay
		}
	}
	if log == nil {
		log = logger.GetDefault()
	}

	idle := make(chan struct{})
	close(idle)

	return &Worker{
		repo:       repo,
		extractor:  extractor,
		indexer:    indexer,
		logger:     log,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		idle:       idle,
	}
}

// Enqueue appends an entry to the work list and makes sure a drainer is
// running. It never blocks on extraction.
func (w *Worker) Enqueue(entry domain.QueueEntry) {
	w.mu.Lock()
	w.queue = append(w.queue, entry)
	if !w.draining {
		w.draining = true
		w.idle = make(chan struct{})
		go w.drain()
	}
	w.mu.Unlock()
}

// Status reports the queue length and whether a drainer is active, accurate
// as of the last completed worker step.
func (w *Worker) Status() domain.QueueStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return domain.QueueStatus{
		Length:   len(w.queue),
		Draining: w.draining,
	}
}

// Pending reports whether the given content id is sitting in the queue.
func (w *Worker) Pending(contentID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range w.queue {
		if e.ContentID == contentID {
			return true
		}
	}
	return false
}

// WaitIdle blocks until the queue is drained and the drainer has parked.
// Scheduled retries are not waited for.
func (w *Worker) WaitIdle() {
	w.mu.Lock()
	ch := w.idle
	w.mu.Unlock()
	<-ch
}

func (w *Worker) drain() {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.draining = false
			close(w.idle)
			w.mu.Unlock()
			return
		}
		entry := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.process(entry)
	}
}

// process drives one entry through the status state machine. Every
// transition is written to the content store before the next dequeue.
func (w *Worker) process(entry domain.QueueEntry) {
	ctx := logger.WithFields(context.Background(), logger.Fields{
		logger.FieldComponent: "worker",
		logger.FieldContentID: entry.ContentID,
		logger.FieldUserID:    entry.UserID,
		logger.FieldKind:      string(entry.Kind),
	})

	if err := w.repo.UpdateStatus(ctx, entry.ContentID, domain.StatusProcessing, ""); err != nil {
		logger.CtxError(ctx, "Failed to mark content processing: %v", err)
		return
	}

	start := time.Now()
	result, err := w.extractor.Extract(ctx, extract.Request{
		Kind:            entry.Kind,
		SourceLink:      entry.SourceLink,
		UserDescription: entry.UserDescription,
	})
	if err != nil {
		w.handleFailure(ctx, entry, err)
		return
	}

	if err := w.repo.UpdateExtraction(ctx, entry.ContentID, result.Text, result.Metadata); err != nil {
		logger.CtxError(ctx, "Failed to persist extraction result: %v", err)
		return
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldStatus:     string(domain.StatusCompleted),
		"method":               result.Metadata[extract.MetaMethod],
	}).Info(ctx, "Extraction completed")

	// Push the enriched text into the vector index. Best-effort; the
	// primary record is already complete.
	if item, err := w.repo.GetByID(ctx, entry.ContentID); err == nil {
		w.indexer.ReindexAsync(item)
	}
}

func (w *Worker) handleFailure(ctx context.Context, entry domain.QueueEntry, extractErr error) {
	retryable := domain.IsTransient(extractErr) && entry.RetryCount+1 < w.maxRetries

	if err := w.repo.UpdateStatus(ctx, entry.ContentID, domain.StatusFailed, extractErr.Error()); err != nil {
		logger.CtxError(ctx, "Failed to mark content failed: %v", err)
	}

	if !retryable {
		logger.With(logger.Fields{
			logger.FieldRetry:  entry.RetryCount,
			logger.FieldStatus: string(domain.StatusFailed),
		}).Warn(ctx, "Extraction failed terminally: %v", extractErr)
		return
	}

	next := entry
	next.RetryCount++
	delay := w.baseDelay * time.Duration(next.RetryCount)

	logger.With(logger.Fields{
		logger.FieldRetry: next.RetryCount,
	}).Info(ctx, "Extraction failed, retrying in %s: %v", delay, extractErr)

	// Retries rejoin at the back of the queue so a flapping item cannot
	// starve the rest. The item stays failed while the timer runs, which
	// keeps an explicit reprocess call valid during the window.
	time.AfterFunc(delay, func() {
		w.Enqueue(next)
	})
}
