package knowledge

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aihub/knowledge-go/internal/errors"
)

var embeddingDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

const embedRetryBackoff = 500 * time.Millisecond

// OpenAIEmbedder 使用OpenAI Embedding API的远程实现。
// 瞬时错误（5xx、连接失败）重试一次，4xx不重试。
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder 创建OpenAI向量化器
func NewOpenAIEmbedder(apiKey, baseURL, model string) (*OpenAIEmbedder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.NewInvalidConfig("openai embedder requires an api key")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	dims, ok := embeddingDimensions[model]
	if !ok {
		dims = 1536
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dims,
	}, nil
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewEmbeddingError("text is empty")
	}
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.NewEmbeddingError("batch is empty")
	}
	return e.embed(ctx, texts)
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.createEmbeddings(ctx, texts)
	if err != nil {
		if !isTransientEmbedError(err) {
			return nil, e.wrapEmbedError(err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(embedRetryBackoff):
		}
		resp, err = e.createEmbeddings(ctx, texts)
		if err != nil {
			return nil, e.wrapEmbedError(err)
		}
	}

	if len(resp.Data) != len(texts) {
		return nil, errors.NewEmbeddingError(fmt.Sprintf("embedding response has %d vectors, expected %d", len(resp.Data), len(texts)))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, errors.NewEmbeddingError(fmt.Sprintf("embedding response index %d out of range", item.Index))
		}
		if len(item.Embedding) != e.dimensions {
			return nil, errors.NewEmbeddingError(fmt.Sprintf("embedding dimension %d does not match model dimension %d", len(item.Embedding), e.dimensions))
		}
		vec := make([]float32, len(item.Embedding))
		copy(vec, item.Embedding)
		vectors[item.Index] = vec
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, errors.NewEmbeddingError(fmt.Sprintf("embedding response missing vector for input %d", i))
		}
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) createEmbeddings(ctx context.Context, texts []string) (openai.EmbeddingResponse, error) {
	return e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
}

// isTransientEmbedError 判断是否为可重试的瞬时错误：5xx或网络层失败
func isTransientEmbedError(err error) bool {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 || reqErr.HTTPStatusCode >= 500
	}
	// 非API错误视为连接层问题
	return !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded)
}

func (e *OpenAIEmbedder) wrapEmbedError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTimeout("embedding request timed out").WithCause(err)
	}
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 {
		return errors.NewEmbeddingError(fmt.Sprintf("embedding request rejected: %s", apiErr.Message)).WithCause(err)
	}
	return errors.NewProviderUnavailable("embedding provider unreachable").WithCause(err)
}
