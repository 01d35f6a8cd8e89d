package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aihub/knowledge-go/internal/logger"
)

const defaultEmbedCacheTTL = time.Hour

// CachedEmbedder 查询向量的Redis缓存装饰器。
// 只缓存EmbedQuery结果，批量调用直接透传；缓存故障降级为直连。
type CachedEmbedder struct {
	inner Embedder
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedEmbedder 包装一个Embedder加查询缓存
func NewCachedEmbedder(inner Embedder, rdb *redis.Client, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = defaultEmbedCacheTTL
	}
	return &CachedEmbedder{inner: inner, rdb: rdb, ttl: ttl}
}

func (e *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.rdb == nil {
		return e.inner.EmbedQuery(ctx, text)
	}

	key := e.cacheKey(text)
	if raw, err := e.rdb.Get(ctx, key).Bytes(); err == nil {
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err == nil && len(vec) == e.inner.Dimensions() {
			return vec, nil
		}
	}

	vec, err := e.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(vec); err == nil {
		if err := e.rdb.Set(ctx, key, raw, e.ttl).Err(); err != nil {
			logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return vec, nil
}

func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.inner.EmbedBatch(ctx, texts)
}

func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

func (e *CachedEmbedder) Ready() bool {
	return e.inner.Ready()
}

func (e *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "kb:embed:" + hex.EncodeToString(sum[:16])
}
