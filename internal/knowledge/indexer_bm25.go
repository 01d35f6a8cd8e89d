package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/aihub/knowledge-go/internal/errors"
)

// BM25调优常数
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// BM25Indexer 进程内倒排索引，完整实现BM25打分。
// 每个集合维护term→(entry id→词频)的postings与entry长度统计，
// 文档频率df直接取postings长度，删除后自然回落
type BM25Indexer struct {
	mu          sync.RWMutex
	collections map[string]*bm25Collection
}

type bm25Collection struct {
	entries  map[int64]*bm25Entry
	postings map[string]map[int64]int
	totalLen int64
}

type bm25Entry struct {
	documentID string
	content    string
	metadata   map[string]string
	length     int
	terms      map[string]int
}

func NewBM25Indexer() *BM25Indexer {
	return &BM25Indexer{
		collections: make(map[string]*bm25Collection),
	}
}

func (idx *BM25Indexer) Index(ctx context.Context, collection string, entries []IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, entry := range entries {
		if entry.ID == 0 {
			return errors.NewInvalidArgument("entry id must be assigned before lexical indexing")
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	col, ok := idx.collections[collection]
	if !ok {
		col = &bm25Collection{
			entries:  make(map[int64]*bm25Entry),
			postings: make(map[string]map[int64]int),
		}
		idx.collections[collection] = col
	}

	for _, entry := range entries {
		// 同id重复写入视为更新，先清掉旧的倒排记录
		if old, ok := col.entries[entry.ID]; ok {
			col.removeEntry(entry.ID, old)
		}

		terms := make(map[string]int)
		tokens := tokenize(entry.Content)
		for _, term := range tokens {
			terms[term]++
		}

		col.entries[entry.ID] = &bm25Entry{
			documentID: entry.DocumentID,
			content:    entry.Content,
			metadata:   copyMetadata(entry.Metadata),
			length:     len(tokens),
			terms:      terms,
		}
		col.totalLen += int64(len(tokens))

		for term, tf := range terms {
			posting, ok := col.postings[term]
			if !ok {
				posting = make(map[int64]int)
				col.postings[term] = posting
			}
			posting[entry.ID] = tf
		}
	}
	return nil
}

func (idx *BM25Indexer) Search(ctx context.Context, req FulltextSearchRequest) ([]SearchMatch, error) {
	if req.TopK <= 0 {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("topK must be positive, got %d", req.TopK))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	col, ok := idx.collections[req.Collection]
	if !ok || len(col.entries) == 0 {
		return nil, nil
	}

	n := float64(len(col.entries))
	avgdl := float64(col.totalLen) / n

	// 查询term去重，重复term不叠加得分
	queryTerms := make(map[string]struct{})
	for _, term := range tokenize(req.Query) {
		queryTerms[term] = struct{}{}
	}

	scores := make(map[int64]float64)
	for term := range queryTerms {
		posting, ok := col.postings[term]
		if !ok {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for entryID, tf := range posting {
			entry := col.entries[entryID]
			norm := 1 - bm25B + bm25B*float64(entry.length)/avgdl
			scores[entryID] += idf * (float64(tf) * (bm25K1 + 1)) / (float64(tf) + bm25K1*norm)
		}
	}

	matches := make([]SearchMatch, 0, len(scores))
	for entryID, score := range scores {
		entry := col.entries[entryID]
		matches = append(matches, SearchMatch{
			EntryID:    entryID,
			DocumentID: entry.documentID,
			Content:    entry.content,
			Score:      score,
			Metadata:   copyMetadata(entry.metadata),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].EntryID < matches[j].EntryID
		}
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > req.TopK {
		matches = matches[:req.TopK]
	}
	return matches, nil
}

func (idx *BM25Indexer) DeleteByDocument(ctx context.Context, collection, documentID string) (int64, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	col, ok := idx.collections[collection]
	if !ok {
		return 0, nil
	}

	var deleted int64
	for entryID, entry := range col.entries {
		if entry.documentID != documentID {
			continue
		}
		col.removeEntry(entryID, entry)
		deleted++
	}
	return deleted, nil
}

func (idx *BM25Indexer) Ready() bool {
	return true
}

func (col *bm25Collection) removeEntry(entryID int64, entry *bm25Entry) {
	for term := range entry.terms {
		posting := col.postings[term]
		delete(posting, entryID)
		if len(posting) == 0 {
			delete(col.postings, term)
		}
	}
	col.totalLen -= int64(entry.length)
	delete(col.entries, entryID)
}
