package knowledge

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/aihub/knowledge-go/internal/errors"
)

const defaultLocalDimensions = 384

// LocalEmbedder 本地确定性向量化实现。
// 基于特征哈希的词袋模型：分词后将每个term哈希到固定维度的桶中累加，
// 再做L2归一化。无网络依赖，相同输入永远产生相同向量。
type LocalEmbedder struct {
	dimensions int
}

// NewLocalEmbedder 创建本地向量化器，dimensions<=0时使用默认维度
func NewLocalEmbedder(dimensions int) *LocalEmbedder {
	if dimensions <= 0 {
		dimensions = defaultLocalDimensions
	}
	return &LocalEmbedder{dimensions: dimensions}
}

func (e *LocalEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewEmbeddingError("text is empty")
	}
	return e.embed(text), nil
}

func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.NewEmbeddingError("batch is empty")
	}
	results := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = e.embed(text)
	}
	return results, nil
}

func (e *LocalEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *LocalEmbedder) Ready() bool {
	return true
}

func (e *LocalEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dimensions)
	for _, term := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(term))
		sum := h.Sum32()
		bucket := int(sum % uint32(e.dimensions))
		// 最高位决定符号，减少哈希冲突导致的分量互相抵消
		if sum&0x80000000 != 0 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// tokenize 小写分词：字母数字连续段为一个term，CJK字符单字成term
func tokenize(text string) []string {
	var terms []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			terms = append(terms, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			terms = append(terms, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return terms
}
