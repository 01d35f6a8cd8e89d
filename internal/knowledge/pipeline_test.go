package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihub/knowledge-go/internal/errors"
)

func newTestPipeline(t *testing.T, embedder Embedder, store *fakeVectorStore, indexer *fakeIndexer) *IngestionPipeline {
	t.Helper()
	chunker, err := NewChunker(10, 3)
	require.NoError(t, err)
	return NewIngestionPipeline(chunker, embedder, store, indexer)
}

func TestPipelineIngest(t *testing.T) {
	store := &fakeVectorStore{upsertIDs: []int64{11, 12, 13, 14}}
	indexer := &fakeIndexer{}
	embedder := &fakeEmbedder{dims: 4}
	pipeline := newTestPipeline(t, embedder, store, indexer)

	result, err := pipeline.Ingest(context.Background(), IngestRequest{
		DocumentID: "doc-1",
		Collection: "kb_chunks_1",
		Text:       "abcdefghijklmnopqrstuvwxyz",
		FileName:   "a.txt",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.ChunkCount)
	assert.Equal(t, []int64{11, 12, 13, 14}, result.EntryIDs)

	// 集合维度取自embedder
	assert.Equal(t, 1, store.ensureCalls)
	assert.Equal(t, 4, store.ensuredDim)

	// 全文索引收到的entry带着向量索引分配的id与元数据
	require.Len(t, indexer.indexed, 4)
	assert.Equal(t, int64(11), indexer.indexed[0].ID)
	assert.Equal(t, "doc-1", indexer.indexed[0].DocumentID)
	assert.Equal(t, "a.txt", indexer.indexed[0].Metadata["file_name"])
	assert.Equal(t, "0", indexer.indexed[0].Metadata["chunk_index"])
	assert.Equal(t, "abcdefghij", indexer.indexed[0].Content)
}

func TestPipelineIngestEmptyText(t *testing.T) {
	store := &fakeVectorStore{}
	embedder := &fakeEmbedder{dims: 4}
	pipeline := newTestPipeline(t, embedder, store, &fakeIndexer{})

	result, err := pipeline.Ingest(context.Background(), IngestRequest{
		DocumentID: "doc-1",
		Collection: "c",
		Text:       "",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ChunkCount)
	assert.Equal(t, 0, embedder.batchCalls)
	assert.Equal(t, 0, store.ensureCalls)
}

func TestPipelineIngestEmbedFailure(t *testing.T) {
	store := &fakeVectorStore{}
	embedder := &fakeEmbedder{dims: 4, err: errors.NewProviderUnavailable("api down")}
	pipeline := newTestPipeline(t, embedder, store, &fakeIndexer{})

	_, err := pipeline.Ingest(context.Background(), IngestRequest{
		DocumentID: "doc-1",
		Collection: "c",
		Text:       "some document text",
	})
	require.Error(t, err)
	// 错误带步骤标记且保留原始错误码
	assert.Contains(t, err.Error(), "embed chunks")
	assert.Equal(t, errors.ErrCodeProviderUnavailable, errors.CodeOf(err))
	assert.Equal(t, 0, store.ensureCalls)
}

func TestPipelineIngestDimensionConflict(t *testing.T) {
	store := &fakeVectorStore{err: errors.NewDimensionConflict("c", 384, 1536)}
	pipeline := newTestPipeline(t, &fakeEmbedder{dims: 1536}, store, &fakeIndexer{})

	_, err := pipeline.Ingest(context.Background(), IngestRequest{
		DocumentID: "doc-1",
		Collection: "c",
		Text:       "some document text",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure collection")
	assert.Equal(t, errors.ErrCodeDimensionConflict, errors.CodeOf(err))
}

func TestPipelineIngestLexicalFailure(t *testing.T) {
	indexer := &fakeIndexer{err: errors.NewVectorStoreError("es rejected")}
	pipeline := newTestPipeline(t, &fakeEmbedder{dims: 4}, &fakeVectorStore{}, indexer)

	_, err := pipeline.Ingest(context.Background(), IngestRequest{
		DocumentID: "doc-1",
		Collection: "c",
		Text:       "some document text",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lexical index")
	assert.Equal(t, errors.ErrCodeVectorStoreError, errors.CodeOf(err))
}

func TestPipelineRemove(t *testing.T) {
	store := &fakeVectorStore{}
	indexer := &fakeIndexer{}
	pipeline := newTestPipeline(t, &fakeEmbedder{dims: 4}, store, indexer)

	_, err := pipeline.Remove(context.Background(), "c", "doc-1")
	require.NoError(t, err)
}
