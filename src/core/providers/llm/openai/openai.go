package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"noir-server-go/src/core/providers/llm"
	"noir-server-go/src/core/types"

	"github.com/sashabaranov/go-openai"
)

// DeepSeek 默认接入参数，DeepSeek 兼容 OpenAI 接口
const (
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	DeepSeekModel   = "deepseek-chat"
)

// Provider OpenAI兼容的LLM提供者
type Provider struct {
	*llm.BaseProvider
	client  *openai.Client
	service string
}

// 注册提供者
func init() {
	llm.Register("openai", NewProvider)
	llm.Register("deepseek", NewDeepSeekProvider)
}

// NewProvider 创建OpenAI提供者
func NewProvider(config *llm.Config) (llm.Provider, error) {
	return &Provider{
		BaseProvider: llm.NewBaseProvider(config),
		service:      "OpenAI",
	}, nil
}

// NewDeepSeekProvider 创建DeepSeek提供者，未配置时使用DeepSeek的默认地址与模型
func NewDeepSeekProvider(config *llm.Config) (llm.Provider, error) {
	cfg := *config
	if cfg.BaseURL == "" {
		cfg.BaseURL = DeepSeekBaseURL
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DeepSeekModel
	}
	return &Provider{
		BaseProvider: llm.NewBaseProvider(&cfg),
		service:      "DeepSeek",
	}, nil
}

// Initialize 初始化提供者
func (p *Provider) Initialize() error {
	config := p.Config()
	if config.APIKey == "" {
		return fmt.Errorf("缺少%s API key", p.service)
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	p.client = openai.NewClientWithConfig(clientConfig)
	return nil
}

// Cleanup 清理资源
func (p *Provider) Cleanup() error {
	return nil
}

// Response types.LLMProvider接口实现
func (p *Provider) Response(ctx context.Context, sessionID string, messages []types.Message) (<-chan types.Response, error) {
	config := p.Config()
	request := openai.ChatCompletionRequest{
		Model:            config.ModelName,
		Messages:         ToChatMessages(messages),
		Stream:           true,
		MaxTokens:        p.MaxTokens(),
		Temperature:      float32(config.Temperature),
		TopP:             float32(config.TopP),
		FrequencyPenalty: float32(config.FrequencyPenalty),
		PresencePenalty:  float32(config.PresencePenalty),
	}
	return StreamChat(ctx, p.client, request, p.service), nil
}

// ToChatMessages 转换为 go-openai 的消息格式
func ToChatMessages(messages []types.Message) []openai.ChatCompletionMessage {
	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return chatMessages
}

// StreamChat 发起流式对话请求，过滤思考内容后逐片段输出
func StreamChat(ctx context.Context, client *openai.Client, request openai.ChatCompletionRequest, service string) <-chan types.Response {
	responseChan := make(chan types.Response, 10)

	go func() {
		defer close(responseChan)

		send := func(resp types.Response) bool {
			select {
			case responseChan <- resp:
				return true
			case <-ctx.Done():
				return false
			}
		}

		request.Stream = true
		stream, err := client.CreateChatCompletionStream(ctx, request)
		if err != nil {
			send(llm.ErrorResponse(service, err))
			return
		}
		defer stream.Close()

		filter := &llm.ThinkFilter{}
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				send(llm.ErrorResponse(service, err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}
			// 处理思考标签
			if content := filter.Push(response.Choices[0].Delta.Content); content != "" {
				if !send(types.Response{Content: content}) {
					return
				}
			}
		}

		if rest := filter.Flush(); rest != "" {
			send(types.Response{Content: rest})
		}
	}()

	return responseChan
}
