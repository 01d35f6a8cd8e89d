package knowledge

import (
	"context"
)

// Embedder 定义文本向量化接口
type Embedder interface {
	// EmbedQuery 将单条查询文本转换为向量
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch 批量向量化，返回顺序与输入一致
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions 返回向量维度，首次调用前必须已确定
	Dimensions() int
	Ready() bool
}
