package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"
	"github.com/sashabaranov/go-openai"
)

// DefaultEmbeddingModel 默认嵌入模型
const DefaultEmbeddingModel = string(openai.SmallEmbedding3)

// Embedder 将文本转换为向量
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// NewEmbedder 根据配置创建嵌入器
func NewEmbedder(cfg Config) (Embedder, error) {
	switch cfg.Type {
	case "openai", "":
		return NewOpenAIEmbedder(cfg)
	case "hash":
		return NewHashEmbedder(512), nil
	default:
		return nil, fmt.Errorf("未知的嵌入模型类型: %s", cfg.Type)
	}
}

// OpenAIEmbedder 调用OpenAI兼容的嵌入接口，查询结果缓存在内存中
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	cache      *ristretto.Cache
	dimensions atomic.Int32
}

// NewOpenAIEmbedder 创建OpenAI嵌入器，缺少密钥时返回错误
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("缺少嵌入模型 API key")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.ModelName
	if model == "" {
		model = DefaultEmbeddingModel
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        1e5,
		MaxCost:            64 << 20, // 64MB
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("创建嵌入缓存失败: %v", err)
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		cache:  cache,
	}, nil
}

// Embed 获取文本的向量，相同文本命中缓存
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.model + "\x00" + text
	if cached, ok := e.cache.Get(key); ok {
		return cached.([]float32), nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("获取嵌入向量失败: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("嵌入接口返回空向量")
	}

	embedding := resp.Data[0].Embedding
	e.dimensions.Store(int32(len(embedding)))
	e.cache.Set(key, embedding, int64(len(embedding)*4))
	e.cache.Wait()
	return embedding, nil
}

// Dimensions 向量维度，首次调用Embed之前为0
func (e *OpenAIEmbedder) Dimensions() int {
	return int(e.dimensions.Load())
}

// Close 释放缓存
func (e *OpenAIEmbedder) Close() {
	e.cache.Close()
}

// HashEmbedder 基于哈希的确定性嵌入器，不依赖外部服务，只适合测试与离线调试
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder 创建哈希嵌入器
func NewHashEmbedder(dimensions int) *HashEmbedder {
	return &HashEmbedder{dimensions: dimensions}
}

// Embed 按词哈希累加生成向量，含相同词的文本彼此相近
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New64a()
		f.Write([]byte(strings.Trim(word, ".,!?;:'\"")))
		seed := f.Sum64()
		for i := 0; i < 4; i++ {
			seed = seed*6364136223846793005 + 1442695040888963407
			// 低位周期太短，取高位决定桶
			vec[(seed>>33)%uint64(h.dimensions)] += 1
		}
	}
	return normalize(vec), nil
}

// Dimensions 向量维度
func (h *HashEmbedder) Dimensions() int {
	return h.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1 // 空文本也需要一个合法的单位向量
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
