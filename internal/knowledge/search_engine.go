package knowledge

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aihub/knowledge-go/internal/errors"
)

// SearchMode 检索模式，封闭枚举
type SearchMode string

const (
	SearchModeVector SearchMode = "vector"
	SearchModeBM25   SearchMode = "bm25"
	SearchModeHybrid SearchMode = "hybrid"
)

// ParseSearchMode 解析检索模式，空串回落到hybrid，未知值返回INVALID_CONFIG
func ParseSearchMode(s string) (SearchMode, error) {
	switch SearchMode(s) {
	case SearchModeVector, SearchModeBM25, SearchModeHybrid:
		return SearchMode(s), nil
	case "":
		return SearchModeHybrid, nil
	default:
		return "", errors.NewInvalidConfig(fmt.Sprintf("unknown retrieval type %q", s))
	}
}

// HybridSearchRequest 混合检索请求
type HybridSearchRequest struct {
	Collection   string
	Query        string
	Mode         SearchMode
	TopK         int
	VectorWeight float64
	BM25Weight   float64
}

// HybridSearchEngine 组合向量检索与词法检索。
// 融合得分为原始分数的加权和，不做任何归一化：
// 两路分数量纲不同是有意为之，权重由调用方直接给定
type HybridSearchEngine struct {
	indexer     FulltextIndexer
	vectorStore VectorStore
	embedder    Embedder
}

func NewHybridSearchEngine(indexer FulltextIndexer, vectorStore VectorStore, embedder Embedder) *HybridSearchEngine {
	return &HybridSearchEngine{
		indexer:     indexer,
		vectorStore: vectorStore,
		embedder:    embedder,
	}
}

func (e *HybridSearchEngine) Search(ctx context.Context, req HybridSearchRequest) ([]SearchMatch, error) {
	if req.TopK <= 0 {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("topK must be positive, got %d", req.TopK))
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.NewInvalidArgument("query cannot be empty")
	}
	mode, err := ParseSearchMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	var (
		vectorResults []SearchMatch
		bm25Results   []SearchMatch
	)

	// bm25模式不做向量化，查询向量最多计算一次
	if mode == SearchModeVector || mode == SearchModeHybrid {
		embedding, err := e.embedder.EmbedQuery(ctx, req.Query)
		if err != nil {
			return nil, asSearchError(err, "embed query")
		}
		vectorResults, err = e.vectorStore.Search(ctx, VectorSearchRequest{
			Collection:     req.Collection,
			QueryEmbedding: embedding,
			TopK:           req.TopK,
		})
		if err != nil {
			return nil, asSearchError(err, "vector search")
		}
	}

	if mode == SearchModeBM25 || mode == SearchModeHybrid {
		bm25Results, err = e.indexer.Search(ctx, FulltextSearchRequest{
			Collection: req.Collection,
			Query:      req.Query,
			TopK:       req.TopK,
		})
		if err != nil {
			return nil, asSearchError(err, "bm25 search")
		}
	}

	switch mode {
	case SearchModeVector:
		return truncateMatches(vectorResults, req.TopK), nil
	case SearchModeBM25:
		return truncateMatches(bm25Results, req.TopK), nil
	default:
		return fuseMatches(vectorResults, bm25Results, req.VectorWeight, req.BM25Weight, req.TopK), nil
	}
}

// fuseMatches 按entry id合并两路结果：
// 向量命中贡献score×vectorWeight，词法命中贡献score×bm25Weight，
// 同一entry两路都命中时贡献相加，只命中一路时不做任何补偿
func fuseMatches(vectorResults, bm25Results []SearchMatch, vectorWeight, bm25Weight float64, topK int) []SearchMatch {
	merged := make(map[int64]*SearchMatch)

	for _, item := range vectorResults {
		match := item
		match.Score = item.Score * vectorWeight
		merged[item.EntryID] = &match
	}

	for _, item := range bm25Results {
		if existing, ok := merged[item.EntryID]; ok {
			existing.Score += item.Score * bm25Weight
			if existing.Content == "" {
				existing.Content = item.Content
			}
			continue
		}
		match := item
		match.Score = item.Score * bm25Weight
		merged[item.EntryID] = &match
	}

	results := make([]SearchMatch, 0, len(merged))
	for _, item := range merged {
		results = append(results, *item)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].EntryID < results[j].EntryID
		}
		return results[i].Score > results[j].Score
	})
	return truncateMatches(results, topK)
}

func truncateMatches(matches []SearchMatch, topK int) []SearchMatch {
	if len(matches) > topK {
		return matches[:topK]
	}
	return matches
}

// asSearchError 检索路径的错误收敛：超过调用方时限统一映射为TIMEOUT
func asSearchError(err error, step string) error {
	if stderrors.Is(err, context.DeadlineExceeded) || errors.Is(err, errors.ErrCodeTimeout) {
		return errors.NewTimeout(fmt.Sprintf("search deadline exceeded during %s", step)).WithCause(err)
	}
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr
	}
	return errors.Newf(errors.ErrCodeVectorStoreError, "%s failed", step).WithCause(err)
}
