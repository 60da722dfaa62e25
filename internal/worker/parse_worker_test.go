package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/collectivehq/funding-flow/internal/domain/expense"
	"github.com/collectivehq/funding-flow/internal/service"
)

type stubParser struct {
	mu      sync.Mutex
	results map[string]expense.UploadResult
	errs    map[string]error
	parsed  []string
}

func (p *stubParser) ParseDocument(ctx context.Context, path, fileURL string) (expense.UploadResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parsed = append(p.parsed, path)
	if err, ok := p.errs[path]; ok {
		return expense.UploadResult{}, err
	}
	if r, ok := p.results[path]; ok {
		return r, nil
	}
	return expense.UploadResult{FileURL: fileURL}, nil
}

type stubApplier struct {
	mu      sync.Mutex
	applied []appliedBatch
	done    chan struct{}
}

type appliedBatch struct {
	draftID      string
	batchID      string
	results      []expense.UploadResult
	replaceIndex int
}

func newStubApplier() *stubApplier {
	return &stubApplier{done: make(chan struct{}, 8)}
}

func (a *stubApplier) ApplyParseResults(draftID, batchID string, results []expense.UploadResult, replaceIndex int) error {
	a.mu.Lock()
	a.applied = append(a.applied, appliedBatch{draftID, batchID, results, replaceIndex})
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *stubApplier) waitForBatch(t *testing.T) appliedBatch {
	t.Helper()
	select {
	case <-a.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch delivery")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applied[len(a.applied)-1]
}

func startWorker(t *testing.T, parser *stubParser, applier *stubApplier) *ParseWorker {
	t.Helper()
	w := NewParseWorker(parser, applier, 4, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func TestParseWorker_DeliversBatchResults(t *testing.T) {
	parser := &stubParser{
		results: map[string]expense.UploadResult{
			"/data/a.pdf": {
				FileURL: "/uploads/d1/a.pdf",
				Parsed: &expense.ParsedExpense{
					Items: []expense.ParsedItem{{
						URL:    "/uploads/d1/a.pdf",
						Amount: &expense.ParsedAmount{ValueCents: 1200, Currency: "USD"},
					}},
				},
			},
		},
	}
	applier := newStubApplier()
	w := startWorker(t, parser, applier)

	require.NoError(t, w.Enqueue(service.ParseJob{
		DraftID: "d1",
		BatchID: "b1",
		Documents: []service.ParseDocument{
			{Path: "/data/a.pdf", FileURL: "/uploads/d1/a.pdf"},
			{Path: "/data/b.pdf", FileURL: "/uploads/d1/b.pdf"},
		},
		ReplaceIndex: expense.NoReplace,
	}))

	batch := applier.waitForBatch(t)
	assert.Equal(t, "d1", batch.draftID)
	assert.Equal(t, "b1", batch.batchID)
	assert.Equal(t, expense.NoReplace, batch.replaceIndex)
	require.Len(t, batch.results, 2)
	assert.NotNil(t, batch.results[0].Parsed)
	assert.Nil(t, batch.results[1].Parsed)
}

func TestParseWorker_ParseFailureDegradesToFileOnly(t *testing.T) {
	parser := &stubParser{
		errs: map[string]error{"/data/bad.pdf": errors.New("unreadable")},
	}
	applier := newStubApplier()
	w := startWorker(t, parser, applier)

	require.NoError(t, w.Enqueue(service.ParseJob{
		DraftID:      "d1",
		BatchID:      "b1",
		Documents:    []service.ParseDocument{{Path: "/data/bad.pdf", FileURL: "/uploads/d1/bad.pdf"}},
		ReplaceIndex: expense.NoReplace,
	}))

	batch := applier.waitForBatch(t)
	require.Len(t, batch.results, 1)
	assert.Equal(t, "/uploads/d1/bad.pdf", batch.results[0].FileURL)
	assert.Nil(t, batch.results[0].Parsed, "failed parse keeps the file reference only")
}

func TestParseWorker_EnqueueFailsWhenQueueFull(t *testing.T) {
	// never started, so nothing drains the queue
	w := NewParseWorker(&stubParser{}, newStubApplier(), 1, zap.NewNop())

	require.NoError(t, w.Enqueue(service.ParseJob{DraftID: "d1"}))
	err := w.Enqueue(service.ParseJob{DraftID: "d2"})
	assert.Error(t, err)
}

func TestParseWorker_StartTwice(t *testing.T) {
	w := NewParseWorker(&stubParser{}, newStubApplier(), 1, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	assert.Error(t, w.Start(context.Background()))
}

func TestManager_StartAndStopAll(t *testing.T) {
	mgr := NewManager(zap.NewNop())
	w := NewParseWorker(&stubParser{}, newStubApplier(), 1, zap.NewNop())
	mgr.Register(w)

	assert.Equal(t, 1, mgr.Count())
	require.NoError(t, mgr.StartAll(context.Background()))
	mgr.StopAll()
}
