package knowledge

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	embedder := NewLocalEmbedder(0)
	assert.Equal(t, defaultLocalDimensions, embedder.Dimensions())
	assert.True(t, embedder.Ready())

	first, err := embedder.EmbedQuery(context.Background(), "knowledge base retrieval")
	require.NoError(t, err)
	second, err := embedder.EmbedQuery(context.Background(), "knowledge base retrieval")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, defaultLocalDimensions)
}

func TestLocalEmbedderNormalized(t *testing.T) {
	embedder := NewLocalEmbedder(64)

	vec, err := embedder.EmbedQuery(context.Background(), "向量检索与全文检索的混合排序")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestLocalEmbedderBatchOrder(t *testing.T) {
	embedder := NewLocalEmbedder(32)
	texts := []string{"first text", "second text", "third text"}

	batch, err := embedder.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := embedder.EmbedQuery(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestLocalEmbedderRejectsEmptyInput(t *testing.T) {
	embedder := NewLocalEmbedder(32)

	_, err := embedder.EmbedQuery(context.Background(), "   ")
	assert.Error(t, err)

	_, err = embedder.EmbedBatch(context.Background(), nil)
	assert.Error(t, err)
}
