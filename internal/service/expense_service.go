package service

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/collectivehq/funding-flow/internal/domain/expense"
	"github.com/collectivehq/funding-flow/internal/models"
	"github.com/collectivehq/funding-flow/internal/storage"
)

// ErrDraftNotFound is returned when no expense draft exists for an ID
var ErrDraftNotFound = errors.New("expense draft not found")

// ExpenseRepository persists expense drafts
type ExpenseRepository interface {
	Create(tx *sql.Tx, draft *models.ExpenseDraft) error
	Update(tx *sql.Tx, draft *models.ExpenseDraft) error
	GetByDraftID(draftID string) (*models.ExpenseDraft, error)
	List() ([]*models.ExpenseDraft, error)
}

// ParseJob is one batch of uploaded documents queued for extraction.
// Documents uploaded together merge into the form together.
type ParseJob struct {
	DraftID      string
	BatchID      string
	Documents    []ParseDocument
	ReplaceIndex int
}

// ParseDocument is a single stored upload within a batch
type ParseDocument struct {
	Path    string
	FileURL string
}

// ParseQueue accepts parse jobs for background processing
type ParseQueue interface {
	Enqueue(job ParseJob) error
}

// ExpenseService manages expense drafts and the upload-parse-merge cycle.
// Uploads are stored immediately and parsed in the background; each batch
// of uploads carries a batch ID, and only the most recent batch for a
// draft is allowed to merge when its results arrive.
type ExpenseService struct {
	repo    ExpenseRepository
	store   storage.UploadStore
	queue   ParseQueue
	merger  *expense.Merger
	logger  *zap.Logger
	mu      sync.Mutex
	batches map[string]string // draft ID -> current batch ID
}

// NewExpenseService creates an expense service
func NewExpenseService(repo ExpenseRepository, store storage.UploadStore, queue ParseQueue, logger *zap.Logger) *ExpenseService {
	return &ExpenseService{
		repo:    repo,
		store:   store,
		queue:   queue,
		merger:  expense.NewMerger(logger),
		logger:  logger,
		batches: make(map[string]string),
	}
}

// CreateDraft opens a new expense draft of the given type
func (s *ExpenseService) CreateDraft(expenseType expense.Type, currency string) (*models.ExpenseDraft, error) {
	draft := &models.ExpenseDraft{
		DraftID: uuid.New().String(),
		Status:  models.DraftStatusOpen,
		Form: expense.FormValues{
			Type:     expenseType,
			Currency: currency,
		},
	}
	if err := s.repo.Create(nil, draft); err != nil {
		return nil, err
	}
	s.logger.Info("Expense draft created",
		zap.String("draft_id", draft.DraftID),
		zap.String("type", string(expenseType)))
	return draft, nil
}

// GetDraft retrieves a draft by ID
func (s *ExpenseService) GetDraft(draftID string) (*models.ExpenseDraft, error) {
	draft, err := s.repo.GetByDraftID(draftID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, ErrDraftNotFound
	}
	return draft, nil
}

// ListDrafts returns all drafts, newest first
func (s *ExpenseService) ListDrafts() ([]*models.ExpenseDraft, error) {
	return s.repo.List()
}

// Upload is a document handed to AttachUploads
type Upload struct {
	Filename string
	Content  []byte
}

// AttachUploads stores a batch of documents for a draft and queues them for
// extraction. replaceIndex names the form item the first parsed item should
// replace, or expense.NoReplace to only append. Starting a new batch
// supersedes any batch still in flight for the draft: the older batch's
// results are discarded when they arrive.
func (s *ExpenseService) AttachUploads(draftID string, uploads []Upload, replaceIndex int) (*models.ExpenseDraft, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("no documents to attach")
	}

	draft, err := s.GetDraft(draftID)
	if err != nil {
		return nil, err
	}

	docs := make([]ParseDocument, 0, len(uploads))
	for _, u := range uploads {
		path, url, err := s.store.SaveUpload(draftID, u.Filename, u.Content)
		if err != nil {
			return nil, err
		}
		docs = append(docs, ParseDocument{Path: path, FileURL: url})
	}

	batchID := uuid.New().String()
	s.mu.Lock()
	s.batches[draftID] = batchID
	s.mu.Unlock()

	draft.Status = models.DraftStatusProcessing
	if err := s.repo.Update(nil, draft); err != nil {
		return nil, err
	}

	job := ParseJob{
		DraftID:      draftID,
		BatchID:      batchID,
		Documents:    docs,
		ReplaceIndex: replaceIndex,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Error("Failed to queue parse job",
			zap.String("draft_id", draftID),
			zap.Error(err))
		draft.Status = models.DraftStatusOpen
		if uerr := s.repo.Update(nil, draft); uerr != nil {
			s.logger.Error("Failed to reset draft status",
				zap.String("draft_id", draftID), zap.Error(uerr))
		}
		return nil, err
	}

	s.logger.Info("Upload batch queued",
		zap.String("draft_id", draftID),
		zap.String("batch_id", batchID),
		zap.Int("documents", len(docs)))
	return draft, nil
}

// ApplyParseResults merges a batch's extraction results into the draft's
// form and persists it. Results from a superseded batch are discarded
// without touching the form.
func (s *ExpenseService) ApplyParseResults(draftID, batchID string, results []expense.UploadResult, replaceIndex int) error {
	s.mu.Lock()
	current, ok := s.batches[draftID]
	if !ok || current != batchID {
		s.mu.Unlock()
		s.logger.Warn("Discarding results from superseded batch",
			zap.String("draft_id", draftID),
			zap.String("batch_id", batchID))
		return nil
	}
	delete(s.batches, draftID)
	s.mu.Unlock()

	draft, err := s.GetDraft(draftID)
	if err != nil {
		return err
	}

	s.merger.MergeAll(&draft.Form, results, replaceIndex)
	draft.Status = models.DraftStatusOpen

	if err := s.repo.Update(nil, draft); err != nil {
		return err
	}

	s.logger.Info("Parse results merged",
		zap.String("draft_id", draftID),
		zap.String("batch_id", batchID),
		zap.Int("results", len(results)),
		zap.Int("form_items", len(draft.Form.Items)))
	return nil
}

// UpdateForm replaces the draft's editable form fields with user edits
func (s *ExpenseService) UpdateForm(draftID string, form expense.FormValues) (*models.ExpenseDraft, error) {
	draft, err := s.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	draft.Form = form
	if err := s.repo.Update(nil, draft); err != nil {
		return nil, err
	}
	return draft, nil
}
