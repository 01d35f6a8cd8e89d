package knowledge

import "context"

// IndexEntry 索引中持久化的最小单元。
// ID由索引在插入时分配，之后不可变；DocumentID用于按文档批量删除。
type IndexEntry struct {
	ID         int64
	DocumentID string
	Content    string
	Metadata   map[string]string
	Embedding  []float32
}

// VectorSearchRequest 向量检索请求
type VectorSearchRequest struct {
	Collection     string
	QueryEmbedding []float32
	TopK           int
	// Filter 为元数据等值条件的合取，全部命中才返回
	Filter map[string]string
}

// VectorStore 向量存储抽象，实现必须支持并发读写
type VectorStore interface {
	// EnsureCollection 幂等建集合；已存在且维度不同时返回DIMENSION_CONFLICT
	EnsureCollection(ctx context.Context, name string, dim int) error
	// Upsert 批量插入，整批原子生效，返回按输入顺序分配的entry id
	Upsert(ctx context.Context, collection string, entries []IndexEntry) ([]int64, error)
	// Search 按L2距离升序返回TopK命中，距离相同时按entry id升序
	Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error)
	// DeleteByFilter 删除满足全部等值条件的entry，返回删除数量
	DeleteByFilter(ctx context.Context, collection string, filter map[string]string) (int64, error)
	Ready() bool
}
