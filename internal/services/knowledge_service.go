package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aihub/knowledge-go/internal/config"
	"github.com/aihub/knowledge-go/internal/errors"
	"github.com/aihub/knowledge-go/internal/knowledge"
	"github.com/aihub/knowledge-go/internal/logger"
	"github.com/aihub/knowledge-go/internal/models"
	"github.com/aihub/knowledge-go/internal/repository"
	"github.com/aihub/knowledge-go/internal/scheduler"
	"github.com/aihub/knowledge-go/internal/storage"
)

// TaskKindIngest 文档入库任务类型
const TaskKindIngest = "ingest"

const defaultSearchTimeout = 10 * time.Second

// KnowledgeService 知识库编排服务：知识库与文档的元数据管理、
// 原文托管、异步入库调度、按知识库配置的混合检索
type KnowledgeService struct {
	cfg         *config.Config
	kbRepo      repository.KnowledgeBaseRepository
	docRepo     repository.DocumentRepository
	storage     storage.ObjectStorage
	sched       *scheduler.Scheduler
	vectorStore knowledge.VectorStore
	indexer     knowledge.FulltextIndexer
	embedder    knowledge.Embedder
	chunker     *knowledge.Chunker
	redis       *redis.Client
	metrics     *MetricsService
	validate    *validator.Validate
}

// KnowledgeServiceDeps 服务依赖集合
type KnowledgeServiceDeps struct {
	Config        *config.Config
	KBRepo        repository.KnowledgeBaseRepository
	DocRepo       repository.DocumentRepository
	ObjectStorage storage.ObjectStorage
	Scheduler     *scheduler.Scheduler
	VectorStore   knowledge.VectorStore
	Indexer       knowledge.FulltextIndexer
	Embedder      knowledge.Embedder
	Redis         *redis.Client
	Metrics       *MetricsService
}

// NewKnowledgeService 创建服务并注册入库任务处理函数
func NewKnowledgeService(deps KnowledgeServiceDeps) (*KnowledgeService, error) {
	chunker, err := knowledge.NewChunker(deps.Config.Knowledge.ChunkSize, deps.Config.Knowledge.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	s := &KnowledgeService{
		cfg:         deps.Config,
		kbRepo:      deps.KBRepo,
		docRepo:     deps.DocRepo,
		storage:     deps.ObjectStorage,
		sched:       deps.Scheduler,
		vectorStore: deps.VectorStore,
		indexer:     deps.Indexer,
		embedder:    deps.Embedder,
		chunker:     chunker,
		redis:       deps.Redis,
		metrics:     deps.Metrics,
		validate:    validator.New(),
	}
	s.sched.RegisterHandler(TaskKindIngest, s.handleIngestTask)
	return s, nil
}

// CreateKnowledgeBaseRequest 创建知识库请求
type CreateKnowledgeBaseRequest struct {
	Name            string                    `json:"name" validate:"required,min=1,max=200"`
	Description     string                    `json:"description" validate:"max=2000"`
	EmbeddingConfig *models.EmbeddingSettings `json:"embedding_config,omitempty"`
	RetrievalConfig *models.RetrievalSettings `json:"retrieval_config,omitempty"`
}

// CreateKnowledgeBase 创建知识库并预建向量集合
func (s *KnowledgeService) CreateKnowledgeBase(ctx context.Context, req CreateKnowledgeBaseRequest) (*models.KnowledgeBase, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	// 配置合法性在创建期校验，而不是埋到首次使用时
	if req.EmbeddingConfig != nil {
		if _, err := knowledge.ParseEmbedderType(req.EmbeddingConfig.Type); err != nil {
			return nil, err
		}
	}
	if req.RetrievalConfig != nil {
		if _, err := knowledge.ParseSearchMode(req.RetrievalConfig.Type); err != nil {
			return nil, err
		}
	}

	kb := &models.KnowledgeBase{
		Name:        req.Name,
		Description: req.Description,
		CreateTime:  time.Now(),
		UpdateTime:  time.Now(),
	}
	if req.EmbeddingConfig != nil {
		raw, err := json.Marshal(req.EmbeddingConfig)
		if err != nil {
			return nil, errors.NewValidationError("invalid embedding config")
		}
		kb.EmbeddingConfig = string(raw)
	}
	if req.RetrievalConfig != nil {
		raw, err := json.Marshal(req.RetrievalConfig)
		if err != nil {
			return nil, errors.NewValidationError("invalid retrieval config")
		}
		kb.RetrievalConfig = string(raw)
	}

	if err := s.kbRepo.Create(ctx, kb); err != nil {
		return nil, errors.New(errors.ErrCodeInternalServer, "failed to create knowledge base").WithCause(err)
	}

	embedder, err := s.resolveEmbedder(kb)
	if err != nil {
		return nil, err
	}
	if err := s.vectorStore.EnsureCollection(ctx, kb.CollectionName(), embedder.Dimensions()); err != nil {
		return nil, err
	}

	logger.Info("knowledge base created",
		zap.Uint("knowledge_base_id", kb.KnowledgeBaseID),
		zap.String("name", kb.Name))
	return kb, nil
}

// GetKnowledgeBase 获取知识库
func (s *KnowledgeService) GetKnowledgeBase(ctx context.Context, id uint) (*models.KnowledgeBase, error) {
	kb, err := s.kbRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError("knowledge base")
		}
		return nil, errors.New(errors.ErrCodeInternalServer, "failed to load knowledge base").WithCause(err)
	}
	return kb, nil
}

// ListKnowledgeBases 分页获取知识库列表
func (s *KnowledgeService) ListKnowledgeBases(ctx context.Context, page, limit int, search string) ([]models.KnowledgeBase, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.kbRepo.List(ctx, page, limit, search)
}

// DeleteKnowledgeBase 删除知识库：清理两套索引、对象存储与元数据
func (s *KnowledgeService) DeleteKnowledgeBase(ctx context.Context, id uint) error {
	kb, err := s.GetKnowledgeBase(ctx, id)
	if err != nil {
		return err
	}

	docs, _, err := s.docRepo.GetByKnowledgeBaseID(ctx, id, 1, 10000)
	if err != nil {
		return errors.New(errors.ErrCodeInternalServer, "failed to list documents").WithCause(err)
	}
	for i := range docs {
		if err := s.removeDocumentData(ctx, kb, &docs[i]); err != nil {
			return err
		}
	}

	if err := s.docRepo.DeleteByKnowledgeBaseID(ctx, id); err != nil {
		return errors.New(errors.ErrCodeInternalServer, "failed to delete documents").WithCause(err)
	}
	if err := s.kbRepo.Delete(ctx, id); err != nil {
		return errors.New(errors.ErrCodeInternalServer, "failed to delete knowledge base").WithCause(err)
	}

	logger.Info("knowledge base deleted", zap.Uint("knowledge_base_id", id))
	return nil
}

// UploadDocument 托管原文并提交异步入库任务。
// 返回的文档记录带着任务id，调用方轮询任务状态获知入库进度
func (s *KnowledgeService) UploadDocument(ctx context.Context, kbID uint, fileName string, content []byte) (*models.KnowledgeDocument, error) {
	if fileName == "" {
		return nil, errors.NewInvalidArgument("file name is required")
	}
	if len(content) == 0 {
		return nil, errors.NewInvalidArgument("document content is empty")
	}

	kb, err := s.GetKnowledgeBase(ctx, kbID)
	if err != nil {
		return nil, err
	}

	objectKey, fileHash, err := s.storage.Put(ctx, content, fileName)
	if err != nil {
		logger.Warn("object storage write failed, continuing without blob", zap.Error(err))
	}

	doc := &models.KnowledgeDocument{
		KnowledgeBaseID: kb.KnowledgeBaseID,
		FileName:        fileName,
		FileHash:        fileHash,
		FileSize:        int64(len(content)),
		ObjectKey:       objectKey,
		Status:          models.DocumentStatusPending,
		CreateTime:      time.Now(),
		UpdateTime:      time.Now(),
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, errors.New(errors.ErrCodeInternalServer, "failed to create document record").WithCause(err)
	}

	taskID, err := s.sched.Submit(TaskKindIngest, map[string]interface{}{
		"document_id":       doc.DocumentID,
		"knowledge_base_id": kb.KnowledgeBaseID,
		"text":              string(content),
	})
	if err != nil {
		_ = s.docRepo.Update(ctx, doc.DocumentID, map[string]interface{}{
			"status":        models.DocumentStatusFailed,
			"error_message": err.Error(),
			"update_time":   time.Now(),
		})
		return nil, err
	}

	doc.TaskID = taskID
	if err := s.docRepo.Update(ctx, doc.DocumentID, map[string]interface{}{
		"task_id":     taskID,
		"update_time": time.Now(),
	}); err != nil {
		return nil, errors.New(errors.ErrCodeInternalServer, "failed to record task id").WithCause(err)
	}
	return doc, nil
}

// handleIngestTask 入库任务：worker池上执行完整pipeline并回写文档状态
func (s *KnowledgeService) handleIngestTask(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	docID, ok := params["document_id"].(uint)
	if !ok {
		return nil, errors.NewInvalidArgument("ingest task missing document_id")
	}
	kbID, _ := params["knowledge_base_id"].(uint)

	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, errors.NewNotFoundError("document")
	}
	kb, err := s.GetKnowledgeBase(ctx, kbID)
	if err != nil {
		return nil, err
	}

	_ = s.docRepo.Update(ctx, docID, map[string]interface{}{
		"status":      models.DocumentStatusProcessing,
		"update_time": time.Now(),
	})

	text, _ := params["text"].(string)
	if text == "" && doc.ObjectKey != "" {
		raw, err := s.storage.Get(ctx, doc.ObjectKey)
		if err != nil {
			s.markIngestFailed(ctx, docID, err)
			return nil, err
		}
		text = string(raw)
	}

	embedder, err := s.resolveEmbedder(kb)
	if err != nil {
		s.markIngestFailed(ctx, docID, err)
		return nil, err
	}

	start := time.Now()
	pipeline := knowledge.NewIngestionPipeline(s.chunker, embedder, s.vectorStore, s.indexer)
	result, err := pipeline.Ingest(ctx, knowledge.IngestRequest{
		DocumentID: doc.DocumentKey(),
		Collection: kb.CollectionName(),
		Text:       text,
		FileName:   doc.FileName,
	})
	if err != nil {
		s.markIngestFailed(ctx, docID, err)
		if s.metrics != nil {
			s.metrics.ObserveIngest("failed", 0, time.Since(start))
		}
		return nil, err
	}

	_ = s.docRepo.Update(ctx, docID, map[string]interface{}{
		"status":      models.DocumentStatusCompleted,
		"chunk_count": result.ChunkCount,
		"update_time": time.Now(),
	})
	if s.metrics != nil {
		s.metrics.ObserveIngest("completed", result.ChunkCount, time.Since(start))
	}

	return map[string]interface{}{
		"chunk_count": result.ChunkCount,
		"entry_ids":   result.EntryIDs,
	}, nil
}

func (s *KnowledgeService) markIngestFailed(ctx context.Context, docID uint, cause error) {
	if err := s.docRepo.Update(ctx, docID, map[string]interface{}{
		"status":        models.DocumentStatusFailed,
		"error_message": cause.Error(),
		"update_time":   time.Now(),
	}); err != nil {
		logger.Error("failed to record ingest failure",
			zap.Uint("document_id", docID), zap.Error(err))
	}
}

// GetDocument 获取文档记录
func (s *KnowledgeService) GetDocument(ctx context.Context, kbID, docID uint) (*models.KnowledgeDocument, error) {
	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError("document")
		}
		return nil, errors.New(errors.ErrCodeInternalServer, "failed to load document").WithCause(err)
	}
	if doc.KnowledgeBaseID != kbID {
		return nil, errors.NewNotFoundError("document")
	}
	return doc, nil
}

// ListDocuments 分页获取知识库下的文档
func (s *KnowledgeService) ListDocuments(ctx context.Context, kbID uint, page, limit int) ([]models.KnowledgeDocument, int64, error) {
	if _, err := s.GetKnowledgeBase(ctx, kbID); err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.docRepo.GetByKnowledgeBaseID(ctx, kbID, page, limit)
}

// DeleteDocument 删除文档：清理索引entry、对象存储与元数据记录
func (s *KnowledgeService) DeleteDocument(ctx context.Context, kbID, docID uint) error {
	kb, err := s.GetKnowledgeBase(ctx, kbID)
	if err != nil {
		return err
	}
	doc, err := s.GetDocument(ctx, kbID, docID)
	if err != nil {
		return err
	}

	if err := s.removeDocumentData(ctx, kb, doc); err != nil {
		return err
	}
	if err := s.docRepo.Delete(ctx, docID); err != nil {
		return errors.New(errors.ErrCodeInternalServer, "failed to delete document record").WithCause(err)
	}
	return nil
}

func (s *KnowledgeService) removeDocumentData(ctx context.Context, kb *models.KnowledgeBase, doc *models.KnowledgeDocument) error {
	collection := kb.CollectionName()
	docKey := doc.DocumentKey()

	deleted, err := s.vectorStore.DeleteByFilter(ctx, collection, map[string]string{"document_id": docKey})
	if err != nil {
		return err
	}
	if _, err := s.indexer.DeleteByDocument(ctx, collection, docKey); err != nil {
		return err
	}
	if doc.ObjectKey != "" {
		if err := s.storage.Remove(ctx, doc.ObjectKey); err != nil {
			logger.Warn("failed to remove stored object",
				zap.String("object_key", doc.ObjectKey), zap.Error(err))
		}
	}

	logger.Info("document index entries removed",
		zap.Uint("document_id", doc.DocumentID),
		zap.Int64("deleted_entries", deleted))
	return nil
}

// SearchRequest 知识库检索请求
type SearchRequest struct {
	Query string `json:"query" validate:"required"`
	Mode  string `json:"mode,omitempty"`
	TopK  int    `json:"top_k,omitempty"`
}

// Search 按知识库检索配置执行检索；请求级参数覆盖知识库级配置
func (s *KnowledgeService) Search(ctx context.Context, kbID uint, req SearchRequest) ([]knowledge.SearchMatch, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	kb, err := s.GetKnowledgeBase(ctx, kbID)
	if err != nil {
		return nil, err
	}
	settings, err := kb.ParseRetrievalSettings()
	if err != nil {
		return nil, errors.NewInvalidConfig("knowledge base retrieval config is malformed").WithCause(err)
	}

	mode := req.Mode
	if mode == "" {
		mode = settings.Type
	}
	if mode == "" {
		mode = s.cfg.Knowledge.Retrieval.Type
	}
	searchMode, err := knowledge.ParseSearchMode(mode)
	if err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK == 0 {
		topK = settings.TopK
	}
	if topK == 0 {
		topK = s.cfg.Knowledge.Retrieval.TopK
	}

	vectorWeight := settings.VectorWeight
	bm25Weight := settings.BM25Weight
	if vectorWeight == 0 && bm25Weight == 0 {
		vectorWeight = s.cfg.Knowledge.Retrieval.VectorWeight
		bm25Weight = s.cfg.Knowledge.Retrieval.BM25Weight
	}

	embedder, err := s.resolveEmbedder(kb)
	if err != nil {
		return nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, defaultSearchTimeout)
	defer cancel()

	start := time.Now()
	engine := knowledge.NewHybridSearchEngine(s.indexer, s.vectorStore, embedder)
	matches, err := engine.Search(searchCtx, knowledge.HybridSearchRequest{
		Collection:   kb.CollectionName(),
		Query:        req.Query,
		Mode:         searchMode,
		TopK:         topK,
		VectorWeight: vectorWeight,
		BM25Weight:   bm25Weight,
	})
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.ObserveSearch(string(searchMode), status, time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// TaskStatus 查询任务状态
func (s *KnowledgeService) TaskStatus(taskID string) (scheduler.Task, error) {
	return s.sched.Status(taskID)
}

// ListTasks 任务列表快照
func (s *KnowledgeService) ListTasks() []scheduler.Task {
	return s.sched.List()
}

// resolveEmbedder 知识库带向量化配置时按配置构建，否则使用进程级默认；
// 有Redis时包一层查询向量缓存
func (s *KnowledgeService) resolveEmbedder(kb *models.KnowledgeBase) (knowledge.Embedder, error) {
	settings, err := kb.ParseEmbeddingSettings()
	if err != nil {
		return nil, errors.NewInvalidConfig("knowledge base embedding config is malformed").WithCause(err)
	}

	embedder := s.embedder
	if settings.Type != "" {
		embedder, err = knowledge.NewEmbedder(knowledge.EmbedderOptions{
			Type:       settings.Type,
			ModelName:  settings.ModelName,
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Dimensions: settings.Dimensions,
		})
		if err != nil {
			return nil, err
		}
	}

	if s.redis != nil && s.cfg.Knowledge.Embedding.CacheTTL > 0 {
		ttl := time.Duration(s.cfg.Knowledge.Embedding.CacheTTL) * time.Second
		return knowledge.NewCachedEmbedder(embedder, s.redis, ttl), nil
	}
	return embedder, nil
}
