package knowledge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aihub/knowledge-go/internal/logger"
)

// IngestRequest 单文档入库请求
type IngestRequest struct {
	DocumentID string
	Collection string
	Text       string
	FileName   string
}

// IngestResult 入库结果
type IngestResult struct {
	ChunkCount int
	EntryIDs   []int64
}

// IngestionPipeline 编排单文档的入库流程：分块 → 批量向量化 →
// 确保集合 → 写入向量索引与全文索引。
// 任一步失败立即中止并带步骤标记上抛；已写入的部分数据不回滚，
// 调用方应将失败的入库视为不确定状态，重新提交会产生重复entry
type IngestionPipeline struct {
	chunker     *Chunker
	embedder    Embedder
	vectorStore VectorStore
	indexer     FulltextIndexer
}

func NewIngestionPipeline(chunker *Chunker, embedder Embedder, vectorStore VectorStore, indexer FulltextIndexer) *IngestionPipeline {
	return &IngestionPipeline{
		chunker:     chunker,
		embedder:    embedder,
		vectorStore: vectorStore,
		indexer:     indexer,
	}
}

func (p *IngestionPipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	chunks := p.chunker.Split(req.Text)
	if len(chunks) == 0 {
		return &IngestResult{}, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	if err := p.vectorStore.EnsureCollection(ctx, req.Collection, p.embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	entries := make([]IndexEntry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = IndexEntry{
			DocumentID: req.DocumentID,
			Content:    chunk.Content,
			Metadata: map[string]string{
				"document_id": req.DocumentID,
				"file_name":   req.FileName,
				"chunk_index": fmt.Sprintf("%d", chunk.Index),
			},
			Embedding: vectors[i],
		}
	}

	ids, err := p.vectorStore.Upsert(ctx, req.Collection, entries)
	if err != nil {
		return nil, fmt.Errorf("vector upsert: %w", err)
	}
	for i := range entries {
		entries[i].ID = ids[i]
	}

	if err := p.indexer.Index(ctx, req.Collection, entries); err != nil {
		return nil, fmt.Errorf("lexical index: %w", err)
	}

	logger.Info("document ingested",
		zap.String("document_id", req.DocumentID),
		zap.String("collection", req.Collection),
		zap.Int("chunks", len(chunks)))

	return &IngestResult{
		ChunkCount: len(chunks),
		EntryIDs:   ids,
	}, nil
}

// Remove 删除文档在两套索引中的全部entry，返回向量索引中删除的数量
func (p *IngestionPipeline) Remove(ctx context.Context, collection, documentID string) (int64, error) {
	deleted, err := p.vectorStore.DeleteByFilter(ctx, collection, map[string]string{"document_id": documentID})
	if err != nil {
		return 0, fmt.Errorf("vector delete: %w", err)
	}
	if _, err := p.indexer.DeleteByDocument(ctx, collection, documentID); err != nil {
		return deleted, fmt.Errorf("lexical delete: %w", err)
	}
	return deleted, nil
}
