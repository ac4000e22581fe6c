package ollama

import (
	"context"
	"fmt"
	"strings"

	"noir-server-go/src/core/providers/llm"
	llmopenai "noir-server-go/src/core/providers/llm/openai"
	"noir-server-go/src/core/types"

	"github.com/sashabaranov/go-openai"
)

// Provider Ollama LLM提供者
type Provider struct {
	*llm.BaseProvider
	client    *openai.Client
	modelName string
	isQwen3   bool
}

// 注册提供者
func init() {
	llm.Register("ollama", NewProvider)
}

// NewProvider 创建Ollama提供者
func NewProvider(config *llm.Config) (llm.Provider, error) {
	base := llm.NewBaseProvider(config)
	provider := &Provider{
		BaseProvider: base,
		modelName:    config.ModelName,
	}

	// 检查是否是qwen3模型
	provider.isQwen3 = config.ModelName != "" && strings.HasPrefix(strings.ToLower(config.ModelName), "qwen3")

	return provider, nil
}

// Initialize 初始化提供者
func (p *Provider) Initialize() error {
	config := p.Config()
	baseURL := config.BaseURL
	if baseURL == "" {
		// 尝试从url字段获取
		if url, ok := config.Extra["url"].(string); ok {
			baseURL = url
		}
	}
	if baseURL == "" {
		return fmt.Errorf("缺少Ollama基础URL配置")
	}

	// 确保URL以/v1结尾
	baseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL = baseURL + "/v1"
	}

	// Ollama不需要真正的API key，但openai客户端需要一个值
	clientConfig := openai.DefaultConfig("ollama")
	clientConfig.BaseURL = baseURL

	p.client = openai.NewClientWithConfig(clientConfig)
	return nil
}

// Response types.LLMProvider接口实现
func (p *Provider) Response(ctx context.Context, sessionID string, messages []types.Message) (<-chan types.Response, error) {
	// 如果是qwen3模型，在用户最后一条消息中添加/no_think指令
	if p.isQwen3 {
		messages = addNoThinkDirective(messages)
	}

	config := p.Config()
	request := openai.ChatCompletionRequest{
		Model:       p.modelName,
		Messages:    llmopenai.ToChatMessages(messages),
		MaxTokens:   p.MaxTokens(),
		Temperature: float32(config.Temperature),
		TopP:        float32(config.TopP),
	}
	return llmopenai.StreamChat(ctx, p.client, request, "Ollama"), nil
}

// addNoThinkDirective 为qwen3模型在用户最后一条消息中添加/no_think指令
func addNoThinkDirective(messages []types.Message) []types.Message {
	messagesCopy := make([]types.Message, len(messages))
	copy(messagesCopy, messages)

	for i := len(messagesCopy) - 1; i >= 0; i-- {
		if messagesCopy[i].Role == types.RoleUser {
			messagesCopy[i].Content = "/no_think " + messagesCopy[i].Content
			break
		}
	}

	return messagesCopy
}
