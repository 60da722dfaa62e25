package service

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/collectivehq/funding-flow/internal/domain/expense"
	"github.com/collectivehq/funding-flow/internal/models"
)

type mockExpenseRepo struct {
	mu     sync.Mutex
	drafts map[string]*models.ExpenseDraft
}

func newMockExpenseRepo() *mockExpenseRepo {
	return &mockExpenseRepo{drafts: make(map[string]*models.ExpenseDraft)}
}

func (m *mockExpenseRepo) Create(tx *sql.Tx, draft *models.ExpenseDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft.ID = int64(len(m.drafts) + 1)
	draft.CreatedAt = time.Now()
	stored := *draft
	m.drafts[draft.DraftID] = &stored
	return nil
}

func (m *mockExpenseRepo) Update(tx *sql.Tx, draft *models.ExpenseDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drafts[draft.DraftID]; !ok {
		return fmt.Errorf("draft %s does not exist", draft.DraftID)
	}
	stored := *draft
	m.drafts[draft.DraftID] = &stored
	return nil
}

func (m *mockExpenseRepo) GetByDraftID(draftID string) (*models.ExpenseDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, ok := m.drafts[draftID]
	if !ok {
		return nil, nil
	}
	copied := *draft
	copied.Form = draft.Form.Clone()
	return &copied, nil
}

func (m *mockExpenseRepo) List() ([]*models.ExpenseDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ExpenseDraft
	for _, d := range m.drafts {
		out = append(out, d)
	}
	return out, nil
}

type mockUploadStore struct {
	saved []string
}

func (m *mockUploadStore) SaveUpload(draftID, filename string, content []byte) (string, string, error) {
	m.saved = append(m.saved, filename)
	return "/data/uploads/" + draftID + "/" + filename, "/uploads/" + draftID + "/" + filename, nil
}

func (m *mockUploadStore) DraftDir(draftID string) string { return "/data/uploads/" + draftID }
func (m *mockUploadStore) RemoveDraft(draftID string) error { return nil }

type mockQueue struct {
	jobs []ParseJob
	err  error
}

func (m *mockQueue) Enqueue(job ParseJob) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func newTestExpenseService(repo *mockExpenseRepo, store *mockUploadStore, queue *mockQueue) *ExpenseService {
	return NewExpenseService(repo, store, queue, zap.NewNop())
}

func TestExpenseService_CreateAndGetDraft(t *testing.T) {
	svc := newTestExpenseService(newMockExpenseRepo(), &mockUploadStore{}, &mockQueue{})

	draft, err := svc.CreateDraft(expense.TypeReceipt, "USD")
	require.NoError(t, err)
	assert.NotEmpty(t, draft.DraftID)
	assert.Equal(t, models.DraftStatusOpen, draft.Status)

	got, err := svc.GetDraft(draft.DraftID)
	require.NoError(t, err)
	assert.Equal(t, expense.TypeReceipt, got.Form.Type)
	assert.Equal(t, "USD", got.Form.Currency)
}

func TestExpenseService_GetDraft_NotFound(t *testing.T) {
	svc := newTestExpenseService(newMockExpenseRepo(), &mockUploadStore{}, &mockQueue{})

	_, err := svc.GetDraft("missing")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestExpenseService_AttachUploads_QueuesBatch(t *testing.T) {
	repo := newMockExpenseRepo()
	store := &mockUploadStore{}
	queue := &mockQueue{}
	svc := newTestExpenseService(repo, store, queue)

	draft, err := svc.CreateDraft(expense.TypeReceipt, "USD")
	require.NoError(t, err)

	uploads := []Upload{
		{Filename: "taxi.pdf", Content: []byte("a")},
		{Filename: "hotel.pdf", Content: []byte("b")},
	}
	updated, err := svc.AttachUploads(draft.DraftID, uploads, expense.NoReplace)
	require.NoError(t, err)

	assert.Equal(t, models.DraftStatusProcessing, updated.Status)
	require.Len(t, queue.jobs, 1)
	job := queue.jobs[0]
	assert.Equal(t, draft.DraftID, job.DraftID)
	assert.NotEmpty(t, job.BatchID)
	assert.Len(t, job.Documents, 2)
	assert.Equal(t, expense.NoReplace, job.ReplaceIndex)
	assert.Equal(t, []string{"taxi.pdf", "hotel.pdf"}, store.saved)
}

func TestExpenseService_AttachUploads_QueueFailureResetsStatus(t *testing.T) {
	repo := newMockExpenseRepo()
	queue := &mockQueue{err: errors.New("queue full")}
	svc := newTestExpenseService(repo, &mockUploadStore{}, queue)

	draft, err := svc.CreateDraft(expense.TypeReceipt, "USD")
	require.NoError(t, err)

	_, err = svc.AttachUploads(draft.DraftID, []Upload{{Filename: "a.pdf", Content: []byte("a")}}, expense.NoReplace)
	require.Error(t, err)

	got, err := svc.GetDraft(draft.DraftID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusOpen, got.Status)
}

func TestExpenseService_ApplyParseResults_MergesIntoForm(t *testing.T) {
	repo := newMockExpenseRepo()
	queue := &mockQueue{}
	svc := newTestExpenseService(repo, &mockUploadStore{}, queue)

	draft, err := svc.CreateDraft(expense.TypeReceipt, "USD")
	require.NoError(t, err)
	_, err = svc.AttachUploads(draft.DraftID, []Upload{{Filename: "taxi.pdf", Content: []byte("a")}}, expense.NoReplace)
	require.NoError(t, err)
	job := queue.jobs[0]

	amount := int64(1200)
	results := []expense.UploadResult{{
		FileURL: job.Documents[0].FileURL,
		Parsed: &expense.ParsedExpense{
			Description: "Taxi ride",
			Items: []expense.ParsedItem{{
				URL:         job.Documents[0].FileURL,
				Description: "Taxi",
				Amount:      &expense.ParsedAmount{ValueCents: amount, Currency: "USD"},
			}},
		},
	}}

	require.NoError(t, svc.ApplyParseResults(draft.DraftID, job.BatchID, results, job.ReplaceIndex))

	got, err := svc.GetDraft(draft.DraftID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusOpen, got.Status)
	require.Len(t, got.Form.Items, 1)
	assert.Equal(t, "Taxi", got.Form.Items[0].Description)
	require.NotNil(t, got.Form.Items[0].AmountCents)
	assert.Equal(t, amount, *got.Form.Items[0].AmountCents)
}

func TestExpenseService_ApplyParseResults_SupersededBatchIsDiscarded(t *testing.T) {
	repo := newMockExpenseRepo()
	queue := &mockQueue{}
	svc := newTestExpenseService(repo, &mockUploadStore{}, queue)

	draft, err := svc.CreateDraft(expense.TypeReceipt, "USD")
	require.NoError(t, err)

	_, err = svc.AttachUploads(draft.DraftID, []Upload{{Filename: "old.pdf", Content: []byte("a")}}, expense.NoReplace)
	require.NoError(t, err)
	oldJob := queue.jobs[0]

	// a second batch supersedes the first
	_, err = svc.AttachUploads(draft.DraftID, []Upload{{Filename: "new.pdf", Content: []byte("b")}}, expense.NoReplace)
	require.NoError(t, err)

	amount := int64(9900)
	staleResults := []expense.UploadResult{{
		FileURL: oldJob.Documents[0].FileURL,
		Parsed: &expense.ParsedExpense{
			Items: []expense.ParsedItem{{
				URL:    oldJob.Documents[0].FileURL,
				Amount: &expense.ParsedAmount{ValueCents: amount, Currency: "USD"},
			}},
		},
	}}

	require.NoError(t, svc.ApplyParseResults(draft.DraftID, oldJob.BatchID, staleResults, oldJob.ReplaceIndex))

	got, err := svc.GetDraft(draft.DraftID)
	require.NoError(t, err)
	assert.Empty(t, got.Form.Items, "stale batch must not touch the form")
	assert.Equal(t, models.DraftStatusProcessing, got.Status, "current batch is still in flight")
}

func TestExpenseService_ApplyParseResults_SecondDeliveryIsNoOp(t *testing.T) {
	repo := newMockExpenseRepo()
	queue := &mockQueue{}
	svc := newTestExpenseService(repo, &mockUploadStore{}, queue)

	draft, err := svc.CreateDraft(expense.TypeReceipt, "USD")
	require.NoError(t, err)
	_, err = svc.AttachUploads(draft.DraftID, []Upload{{Filename: "a.pdf", Content: []byte("a")}}, expense.NoReplace)
	require.NoError(t, err)
	job := queue.jobs[0]

	results := []expense.UploadResult{{FileURL: job.Documents[0].FileURL}}
	require.NoError(t, svc.ApplyParseResults(draft.DraftID, job.BatchID, results, job.ReplaceIndex))
	require.NoError(t, svc.ApplyParseResults(draft.DraftID, job.BatchID, results, job.ReplaceIndex))

	// receipts turn file-only results into items; a duplicate delivery
	// would have produced a second one
	got, err := svc.GetDraft(draft.DraftID)
	require.NoError(t, err)
	assert.Len(t, got.Form.Items, 1, "duplicate delivery must not re-merge")
}

func TestExpenseService_UpdateForm(t *testing.T) {
	svc := newTestExpenseService(newMockExpenseRepo(), &mockUploadStore{}, &mockQueue{})

	draft, err := svc.CreateDraft(expense.TypeInvoice, "")
	require.NoError(t, err)

	form := draft.Form
	form.Description = "Conference travel"
	form.Currency = "EUR"

	updated, err := svc.UpdateForm(draft.DraftID, form)
	require.NoError(t, err)
	assert.Equal(t, "Conference travel", updated.Form.Description)

	got, err := svc.GetDraft(draft.DraftID)
	require.NoError(t, err)
	assert.Equal(t, "EUR", got.Form.Currency)
}
