package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aihub/knowledge-go/internal/config"
	"github.com/aihub/knowledge-go/internal/errors"
	"github.com/aihub/knowledge-go/internal/knowledge"
	"github.com/aihub/knowledge-go/internal/models"
	"github.com/aihub/knowledge-go/internal/scheduler"
	"github.com/aihub/knowledge-go/internal/storage"
)

type fakeKBRepo struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]*models.KnowledgeBase
}

func newFakeKBRepo() *fakeKBRepo {
	return &fakeKBRepo{nextID: 1, items: map[uint]*models.KnowledgeBase{}}
}

func (r *fakeKBRepo) GetDB() *gorm.DB { return nil }

func (r *fakeKBRepo) Create(ctx context.Context, kb *models.KnowledgeBase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kb.KnowledgeBaseID = r.nextID
	r.nextID++
	copied := *kb
	r.items[kb.KnowledgeBaseID] = &copied
	return nil
}

func (r *fakeKBRepo) GetByID(ctx context.Context, id uint) (*models.KnowledgeBase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kb, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *kb
	return &copied, nil
}

func (r *fakeKBRepo) List(ctx context.Context, page, limit int, search string) ([]models.KnowledgeBase, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.KnowledgeBase
	for _, kb := range r.items {
		out = append(out, *kb)
	}
	return out, int64(len(out)), nil
}

func (r *fakeKBRepo) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	return nil
}

func (r *fakeKBRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

type fakeDocRepo struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]*models.KnowledgeDocument
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{nextID: 1, items: map[uint]*models.KnowledgeDocument{}}
}

func (r *fakeDocRepo) GetDB() *gorm.DB { return nil }

func (r *fakeDocRepo) Create(ctx context.Context, doc *models.KnowledgeDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc.DocumentID = r.nextID
	r.nextID++
	copied := *doc
	r.items[doc.DocumentID] = &copied
	return nil
}

func (r *fakeDocRepo) GetByID(ctx context.Context, docID uint) (*models.KnowledgeDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.items[docID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeDocRepo) GetByKnowledgeBaseID(ctx context.Context, kbID uint, page, limit int) ([]models.KnowledgeDocument, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.KnowledgeDocument
	for _, doc := range r.items {
		if doc.KnowledgeBaseID == kbID {
			out = append(out, *doc)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeDocRepo) Update(ctx context.Context, docID uint, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.items[docID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["status"].(string); ok {
		doc.Status = v
	}
	if v, ok := updates["task_id"].(string); ok {
		doc.TaskID = v
	}
	if v, ok := updates["chunk_count"].(int); ok {
		doc.ChunkCount = v
	}
	if v, ok := updates["error_message"].(string); ok {
		doc.ErrorMessage = v
	}
	return nil
}

func (r *fakeDocRepo) Delete(ctx context.Context, docID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, docID)
	return nil
}

func (r *fakeDocRepo) DeleteByKnowledgeBaseID(ctx context.Context, kbID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, doc := range r.items {
		if doc.KnowledgeBaseID == kbID {
			delete(r.items, id)
		}
	}
	return nil
}

func newTestService(t *testing.T) (*KnowledgeService, *fakeDocRepo) {
	t.Helper()

	cfg := &config.Config{
		Knowledge: config.KnowledgeConfig{
			ChunkSize:    80,
			ChunkOverlap: 16,
			Retrieval: config.RetrievalConfig{
				Type:         "hybrid",
				VectorWeight: 0.7,
				BM25Weight:   0.3,
				TopK:         3,
			},
		},
	}

	embedder, err := knowledge.NewEmbedder(knowledge.EmbedderOptions{Type: "local"})
	require.NoError(t, err)

	docRepo := newFakeDocRepo()
	sched := scheduler.New(2, 16)
	t.Cleanup(sched.Shutdown)

	svc, err := NewKnowledgeService(KnowledgeServiceDeps{
		Config:        cfg,
		KBRepo:        newFakeKBRepo(),
		DocRepo:       docRepo,
		ObjectStorage: storage.NoopStorage{},
		Scheduler:     sched,
		VectorStore:   knowledge.NewMemoryVectorStore(),
		Indexer:       knowledge.NewBM25Indexer(),
		Embedder:      embedder,
	})
	require.NoError(t, err)
	return svc, docRepo
}

func waitForDocument(t *testing.T, repo *fakeDocRepo, docID uint, status string) *models.KnowledgeDocument {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := repo.GetByID(context.Background(), docID)
		require.NoError(t, err)
		if doc.Status == status {
			return doc
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("document %d never reached status %s", docID, status)
	return nil
}

func TestKnowledgeServiceUploadAndSearch(t *testing.T) {
	svc, docRepo := newTestService(t)
	ctx := context.Background()

	kb, err := svc.CreateKnowledgeBase(ctx, CreateKnowledgeBaseRequest{Name: "ops runbook"})
	require.NoError(t, err)
	require.NotZero(t, kb.KnowledgeBaseID)

	text := "Restart the payment gateway with systemctl restart payments.\n\n" +
		"Database failover is handled by the orchestrator and requires no action.\n\n" +
		"For cache invalidation, flush the redis instance after each deploy."
	doc, err := svc.UploadDocument(ctx, kb.KnowledgeBaseID, "runbook.txt", []byte(text))
	require.NoError(t, err)
	assert.NotEmpty(t, doc.TaskID)

	stored := waitForDocument(t, docRepo, doc.DocumentID, models.DocumentStatusCompleted)
	assert.Greater(t, stored.ChunkCount, 0)

	task, err := svc.TaskStatus(doc.TaskID)
	require.NoError(t, err)
	assert.Equal(t, scheduler.TaskStatusCompleted, task.Status)

	matches, err := svc.Search(ctx, kb.KnowledgeBaseID, SearchRequest{Query: "payment gateway restart"})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Contains(t, matches[0].Content, "payment")

	// bm25单独检索也能命中
	matches, err = svc.Search(ctx, kb.KnowledgeBaseID, SearchRequest{Query: "redis", Mode: "bm25"})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Contains(t, matches[0].Content, "redis")
}

func TestKnowledgeServiceDeleteDocumentRemovesEntries(t *testing.T) {
	svc, docRepo := newTestService(t)
	ctx := context.Background()

	kb, err := svc.CreateKnowledgeBase(ctx, CreateKnowledgeBaseRequest{Name: "notes"})
	require.NoError(t, err)

	doc, err := svc.UploadDocument(ctx, kb.KnowledgeBaseID, "note.txt", []byte("zebra migrations happen in spring"))
	require.NoError(t, err)
	waitForDocument(t, docRepo, doc.DocumentID, models.DocumentStatusCompleted)

	require.NoError(t, svc.DeleteDocument(ctx, kb.KnowledgeBaseID, doc.DocumentID))

	matches, err := svc.Search(ctx, kb.KnowledgeBaseID, SearchRequest{Query: "zebra", Mode: "bm25"})
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = svc.GetDocument(ctx, kb.KnowledgeBaseID, doc.DocumentID)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}

func TestKnowledgeServiceValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateKnowledgeBase(ctx, CreateKnowledgeBaseRequest{})
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))

	_, err = svc.CreateKnowledgeBase(ctx, CreateKnowledgeBaseRequest{
		Name:            "bad embedder",
		EmbeddingConfig: &models.EmbeddingSettings{Type: "quantum"},
	})
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))

	_, err = svc.UploadDocument(ctx, 999, "x.txt", []byte("content"))
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))

	_, err = svc.UploadDocument(ctx, 999, "x.txt", nil)
	assert.Equal(t, errors.ErrCodeInvalidArgument, errors.CodeOf(err))

	_, err = svc.Search(ctx, 999, SearchRequest{Query: "anything"})
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}

func TestKnowledgeServiceDeleteKnowledgeBase(t *testing.T) {
	svc, docRepo := newTestService(t)
	ctx := context.Background()

	kb, err := svc.CreateKnowledgeBase(ctx, CreateKnowledgeBaseRequest{Name: "temp"})
	require.NoError(t, err)

	doc, err := svc.UploadDocument(ctx, kb.KnowledgeBaseID, "a.txt", []byte("ephemeral content"))
	require.NoError(t, err)
	waitForDocument(t, docRepo, doc.DocumentID, models.DocumentStatusCompleted)

	require.NoError(t, svc.DeleteKnowledgeBase(ctx, kb.KnowledgeBaseID))

	_, err = svc.GetKnowledgeBase(ctx, kb.KnowledgeBaseID)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))

	docs, _, err := docRepo.GetByKnowledgeBaseID(ctx, kb.KnowledgeBaseID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
