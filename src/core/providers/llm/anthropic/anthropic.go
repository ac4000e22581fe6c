package anthropic

import (
	"context"
	"fmt"
	"strings"

	"noir-server-go/src/core/providers/llm"
	"noir-server-go/src/core/types"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel 未配置模型时使用
const DefaultModel = "claude-3-5-haiku-latest"

// Provider Anthropic Claude LLM提供者
type Provider struct {
	*llm.BaseProvider
	client *anthropic.Client
}

// 注册提供者
func init() {
	llm.Register("anthropic", NewProvider)
}

// NewProvider 创建Anthropic提供者
func NewProvider(config *llm.Config) (llm.Provider, error) {
	cfg := *config
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModel
	}
	return &Provider{
		BaseProvider: llm.NewBaseProvider(&cfg),
	}, nil
}

// Initialize 初始化提供者
func (p *Provider) Initialize() error {
	config := p.Config()
	if config.APIKey == "" {
		return fmt.Errorf("缺少Anthropic API key")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	p.client = &client
	return nil
}

// Response types.LLMProvider接口实现
func (p *Provider) Response(ctx context.Context, sessionID string, messages []types.Message) (<-chan types.Response, error) {
	config := p.Config()
	system, conversation := splitMessages(messages)
	if len(conversation) == 0 {
		return nil, fmt.Errorf("Anthropic请求缺少用户消息")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(config.ModelName),
		MaxTokens: int64(p.MaxTokens()),
		Messages:  conversation,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if config.Temperature > 0 {
		// Anthropic 的温度范围是 [0,1]
		params.Temperature = anthropic.Float(min(config.Temperature, 1.0))
	}

	responseChan := make(chan types.Response, 10)
	go func() {
		defer close(responseChan)

		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		filter := &llm.ThinkFilter{}
		for stream.Next() {
			event := stream.Current()
			switch evt := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := evt.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if content := filter.Push(delta.Text); content != "" {
						responseChan <- types.Response{Content: content}
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			responseChan <- llm.ErrorResponse("Anthropic", err)
			return
		}
		if rest := filter.Flush(); rest != "" {
			responseChan <- types.Response{Content: rest}
		}
	}()

	return responseChan, nil
}

// splitMessages 系统消息合并为system块，其余按角色转换，连续的同角色消息合并
func splitMessages(messages []types.Message) (string, []anthropic.MessageParam) {
	var system []string
	var conversation []anthropic.MessageParam
	lastRole := ""
	var pending []string

	flush := func() {
		if len(pending) == 0 {
			return
		}
		block := anthropic.NewTextBlock(strings.Join(pending, "\n\n"))
		if lastRole == types.RoleAssistant {
			conversation = append(conversation, anthropic.NewAssistantMessage(block))
		} else {
			conversation = append(conversation, anthropic.NewUserMessage(block))
		}
		pending = nil
	}

	for _, msg := range messages {
		if msg.Role == types.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		role := types.RoleUser
		if msg.Role == types.RoleAssistant {
			role = types.RoleAssistant
		}
		// 对话必须以用户消息开始
		if len(conversation) == 0 && len(pending) == 0 && role == types.RoleAssistant {
			continue
		}
		if role != lastRole {
			flush()
			lastRole = role
		}
		pending = append(pending, msg.Content)
	}
	flush()

	return strings.Join(system, "\n\n"), conversation
}
