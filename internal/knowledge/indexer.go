package knowledge

import "context"

// FulltextSearchRequest 全文检索请求
type FulltextSearchRequest struct {
	Collection string
	Query      string
	TopK       int
}

// SearchMatch 检索结果。向量命中的Score为相似度（距离越近越大），
// 全文命中的Score为BM25得分，两者量纲不同，融合时直接加权求和
type SearchMatch struct {
	EntryID    int64
	DocumentID string
	Content    string
	Score      float64
	Metadata   map[string]string
}

// FulltextIndexer 按集合维护的词法倒排索引
type FulltextIndexer interface {
	// Index 追加或更新entry的倒排记录
	Index(ctx context.Context, collection string, entries []IndexEntry) error
	// Search 按BM25得分降序返回TopK命中，得分相同时按entry id升序
	Search(ctx context.Context, req FulltextSearchRequest) ([]SearchMatch, error)
	// DeleteByDocument 删除该文档的全部倒排记录并重算词频统计，返回删除的entry数
	DeleteByDocument(ctx context.Context, collection, documentID string) (int64, error)
	Ready() bool
}
