package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/collectivehq/funding-flow/internal/domain/expense"
	"github.com/collectivehq/funding-flow/internal/service"
)

// DocumentParser extracts expense data from a stored document
type DocumentParser interface {
	ParseDocument(ctx context.Context, path, fileURL string) (expense.UploadResult, error)
}

// ResultApplier receives a batch's extraction results once they are ready
type ResultApplier interface {
	ApplyParseResults(draftID, batchID string, results []expense.UploadResult, replaceIndex int) error
}

// ParseWorker drains the parse queue in the background. One batch is
// processed at a time; within a batch, documents are parsed sequentially
// and a document that fails to parse degrades to a file-only result so the
// upload is never lost.
type ParseWorker struct {
	parser       DocumentParser
	applier      ResultApplier
	jobs         chan service.ParseJob
	parseTimeout time.Duration
	logger       *zap.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
}

// NewParseWorker creates a parse worker with the given queue capacity
func NewParseWorker(parser DocumentParser, applier ResultApplier, queueSize int, logger *zap.Logger) *ParseWorker {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &ParseWorker{
		parser:       parser,
		applier:      applier,
		jobs:         make(chan service.ParseJob, queueSize),
		parseTimeout: 120 * time.Second,
		logger:       logger,
	}
}

// Name identifies the worker in manager logs
func (w *ParseWorker) Name() string { return "parse-worker" }

// Enqueue implements service.ParseQueue. It fails fast when the queue is
// full instead of blocking the upload request.
func (w *ParseWorker) Enqueue(job service.ParseJob) error {
	select {
	case w.jobs <- job:
		return nil
	default:
		return fmt.Errorf("parse queue full")
	}
}

// Start begins draining the queue
func (w *ParseWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("parse worker already running")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true

	w.wg.Add(1)
	go w.run()

	w.logger.Info("Parse worker started", zap.Int("queue_size", cap(w.jobs)))
	return nil
}

// Stop cancels in-flight work and waits for the loop to exit
func (w *ParseWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.cancel()
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("Parse worker stopped")
}

func (w *ParseWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case job := <-w.jobs:
			w.processBatch(job)
		}
	}
}

func (w *ParseWorker) processBatch(job service.ParseJob) {
	w.logger.Info("Processing upload batch",
		zap.String("draft_id", job.DraftID),
		zap.String("batch_id", job.BatchID),
		zap.Int("documents", len(job.Documents)))

	results := make([]expense.UploadResult, 0, len(job.Documents))
	for _, doc := range job.Documents {
		ctx, cancel := context.WithTimeout(w.ctx, w.parseTimeout)
		result, err := w.parser.ParseDocument(ctx, doc.Path, doc.FileURL)
		cancel()
		if err != nil {
			w.logger.Warn("Document parse failed, keeping file only",
				zap.String("draft_id", job.DraftID),
				zap.String("file_url", doc.FileURL),
				zap.Error(err))
			result = expense.UploadResult{FileURL: doc.FileURL}
		}
		results = append(results, result)
	}

	if err := w.applier.ApplyParseResults(job.DraftID, job.BatchID, results, job.ReplaceIndex); err != nil {
		w.logger.Error("Failed to apply parse results",
			zap.String("draft_id", job.DraftID),
			zap.String("batch_id", job.BatchID),
			zap.Error(err))
	}
}
