package knowledge

import (
	"fmt"

	"github.com/aihub/knowledge-go/internal/errors"
)

// EmbedderType 向量化实现类型，封闭枚举
type EmbedderType string

const (
	EmbedderTypeLocal  EmbedderType = "local"
	EmbedderTypeOpenAI EmbedderType = "openai"
)

// ParseEmbedderType 解析类型字符串，未知类型返回INVALID_CONFIG
func ParseEmbedderType(s string) (EmbedderType, error) {
	switch EmbedderType(s) {
	case EmbedderTypeLocal, EmbedderTypeOpenAI:
		return EmbedderType(s), nil
	default:
		return "", errors.NewInvalidConfig(fmt.Sprintf("unknown embedding type %q", s))
	}
}

// EmbedderOptions 向量化器构造参数
type EmbedderOptions struct {
	Type       string
	ModelName  string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// NewEmbedder 根据配置构造Embedder，类型选择在构造期完成
func NewEmbedder(opts EmbedderOptions) (Embedder, error) {
	typ, err := ParseEmbedderType(opts.Type)
	if err != nil {
		return nil, err
	}
	switch typ {
	case EmbedderTypeLocal:
		return NewLocalEmbedder(opts.Dimensions), nil
	case EmbedderTypeOpenAI:
		return NewOpenAIEmbedder(opts.APIKey, opts.BaseURL, opts.ModelName)
	default:
		return nil, errors.NewInvalidConfig(fmt.Sprintf("unknown embedding type %q", opts.Type))
	}
}
