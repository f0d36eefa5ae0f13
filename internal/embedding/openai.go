package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultCacheSize      = 1024
)

// OpenAIConfig configures the OpenAI-compatible text encoder.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	TimeoutMS  int
	MaxRetries int
}

// OpenAITextEncoder 通过 OpenAI 兼容接口生成查询向量
// OpenAITextEncoder embeds queries via an OpenAI-compatible /embeddings endpoint.
type OpenAITextEncoder struct {
	client     *openai.Client
	model      string
	maxRetries int
}

func NewOpenAITextEncoder(cfg OpenAIConfig) *OpenAITextEncoder {
	config := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		config.BaseURL = base
	}
	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	config.HTTPClient = httpClient

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultEmbeddingModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &OpenAITextEncoder{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		maxRetries: cfg.MaxRetries,
	}
}

func (e *OpenAITextEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(150*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return nil, fmt.Errorf("embedding response is empty")
		}
		return resp.Data[0].Embedding, nil
	}
	return nil, fmt.Errorf("create embedding: %w", lastErr)
}

// CachedTextEncoder memoizes query vectors in an LRU. Repeated searches for the
// same phrase do not hit the network.
type CachedTextEncoder struct {
	inner TextEncoder
	cache *lru.Cache[string, []float32]
}

func NewCachedTextEncoder(inner TextEncoder, size int) (*CachedTextEncoder, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &CachedTextEncoder{inner: inner, cache: cache}, nil
}

func (c *CachedTextEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	key := strings.ToLower(strings.TrimSpace(text))
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.inner.EncodeText(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v)
	return v, nil
}

// Len reports how many query vectors are cached.
func (c *CachedTextEncoder) Len() int {
	return c.cache.Len()
}
