package knowledge

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihub/knowledge-go/internal/errors"
)

func TestBM25IndexerSingleEntryScore(t *testing.T) {
	idx := NewBM25Indexer()
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, "c", []IndexEntry{
		{ID: 1, DocumentID: "doc-1", Content: "hello"},
	}))

	matches, err := idx.Search(ctx, FulltextSearchRequest{Collection: "c", Query: "hello", TopK: 5})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(1), matches[0].EntryID)

	// N=1, df=1, tf=1, |d|=avgdl → score = ln(1 + 0.5/1.5)
	expected := math.Log(1 + 0.5/1.5)
	assert.InDelta(t, expected, matches[0].Score, 1e-9)
}

func TestBM25IndexerTermFrequencyRanking(t *testing.T) {
	idx := NewBM25Indexer()
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, "c", []IndexEntry{
		{ID: 1, DocumentID: "d", Content: "milvus indexing basics overview"},
		{ID: 2, DocumentID: "d", Content: "milvus milvus deployment guide"},
		{ID: 3, DocumentID: "d", Content: "elasticsearch deployment guide notes"},
	}))

	matches, err := idx.Search(ctx, FulltextSearchRequest{Collection: "c", Query: "milvus", TopK: 5})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// 词频更高的entry排在前面
	assert.Equal(t, int64(2), matches[0].EntryID)
	assert.Equal(t, int64(1), matches[1].EntryID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestBM25IndexerTieBreakByID(t *testing.T) {
	idx := NewBM25Indexer()
	ctx := context.Background()

	// 内容完全一致 → 得分一致 → 按entry id升序
	require.NoError(t, idx.Index(ctx, "c", []IndexEntry{
		{ID: 9, DocumentID: "d", Content: "same text here"},
		{ID: 2, DocumentID: "d", Content: "same text here"},
	}))

	matches, err := idx.Search(ctx, FulltextSearchRequest{Collection: "c", Query: "same", TopK: 5})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(2), matches[0].EntryID)
	assert.Equal(t, int64(9), matches[1].EntryID)
}

func TestBM25IndexerDeleteRecomputesDF(t *testing.T) {
	idx := NewBM25Indexer()
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, "c", []IndexEntry{
		{ID: 1, DocumentID: "doc-1", Content: "shared term one"},
		{ID: 2, DocumentID: "doc-1", Content: "shared term two"},
		{ID: 3, DocumentID: "doc-2", Content: "shared term three"},
	}))

	deleted, err := idx.DeleteByDocument(ctx, "c", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	matches, err := idx.Search(ctx, FulltextSearchRequest{Collection: "c", Query: "shared", TopK: 5})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(3), matches[0].EntryID)

	// 删除后df回落，得分与只索引剩余entry的新索引一致
	fresh := NewBM25Indexer()
	require.NoError(t, fresh.Index(ctx, "c", []IndexEntry{
		{ID: 3, DocumentID: "doc-2", Content: "shared term three"},
	}))
	freshMatches, err := fresh.Search(ctx, FulltextSearchRequest{Collection: "c", Query: "shared", TopK: 5})
	require.NoError(t, err)
	require.Len(t, freshMatches, 1)
	assert.InDelta(t, freshMatches[0].Score, matches[0].Score, 1e-9)
}

func TestBM25IndexerReindexSameEntry(t *testing.T) {
	idx := NewBM25Indexer()
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, "c", []IndexEntry{
		{ID: 1, DocumentID: "d", Content: "original wording"},
	}))
	require.NoError(t, idx.Index(ctx, "c", []IndexEntry{
		{ID: 1, DocumentID: "d", Content: "replacement wording"},
	}))

	matches, err := idx.Search(ctx, FulltextSearchRequest{Collection: "c", Query: "original", TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = idx.Search(ctx, FulltextSearchRequest{Collection: "c", Query: "replacement", TopK: 5})
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestBM25IndexerEdgeCases(t *testing.T) {
	idx := NewBM25Indexer()
	ctx := context.Background()

	// 未知集合 → 空结果而非错误
	matches, err := idx.Search(ctx, FulltextSearchRequest{Collection: "missing", Query: "x", TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = idx.Search(ctx, FulltextSearchRequest{Collection: "c", Query: "x", TopK: 0})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidArgument, errors.CodeOf(err))

	// 未分配id的entry拒绝入索引
	err = idx.Index(ctx, "c", []IndexEntry{{DocumentID: "d", Content: "x"}})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidArgument, errors.CodeOf(err))
}
