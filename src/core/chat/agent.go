package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"noir-server-go/src/core/memory"
	"noir-server-go/src/core/types"
	"noir-server-go/src/core/utils"
)

var (
	// ErrEmptyInput 用户输入为空
	ErrEmptyInput = errors.New("输入内容为空")
	// ErrUpstream LLM服务返回错误
	ErrUpstream = errors.New("LLM服务异常")
)

// storeTimeout 回复完成后写入历史、记忆和对话记录的超时时间
const storeTimeout = 30 * time.Second

// AgentConfig 对话代理配置
type AgentConfig struct {
	SystemPrompt string
	UserTopK     int
	AITopK       int
}

// Agent 把记忆召回、提示词组装和LLM调用串成一轮对话
type Agent struct {
	llm      types.LLMProvider
	memory   MemoryInterface
	sessions *SessionStore
	config   AgentConfig
	logger   *utils.Logger
}

// NewAgent 创建对话代理，mem 为 nil 时不使用记忆
func NewAgent(llm types.LLMProvider, mem MemoryInterface, sessions *SessionStore, config AgentConfig, logger *utils.Logger) *Agent {
	if mem == nil {
		mem = memory.Disabled{}
	}
	return &Agent{
		llm:      llm,
		memory:   mem,
		sessions: sessions,
		config:   config,
		logger:   logger,
	}
}

// Sessions 返回会话存储
func (a *Agent) Sessions() *SessionStore {
	return a.sessions
}

// SystemPrompt 返回人设提示词
func (a *Agent) SystemPrompt() string {
	return a.config.SystemPrompt
}

// recall 召回与输入相关的用户和AI记忆，失败时返回空上下文
func (a *Agent) recall(ctx context.Context, input string) string {
	var parts []string
	for _, q := range []struct {
		role string
		topK int
	}{
		{memory.RoleUser, a.config.UserTopK},
		{memory.RoleAI, a.config.AITopK},
	} {
		if q.topK <= 0 {
			continue
		}
		records, err := a.memory.Query(ctx, input, q.topK, q.role)
		if err != nil {
			a.logger.Warn("召回%s记忆失败: %v", q.role, err)
			continue
		}
		parts = append(parts, memory.Contents(records)...)
	}
	return strings.Join(parts, "\n")
}

// StreamResponse 处理一轮对话并流式返回LLM回复
// 同一会话的对话串行执行，锁在返回的通道关闭时释放
func (a *Agent) StreamResponse(ctx context.Context, sessionID, input string) (<-chan types.Response, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	session := a.sessions.Get(ctx, sessionID)
	session.turnMu.Lock()

	memoryStr := a.recall(ctx, input)
	messages := session.dialogue.GetLLMDialogueWithMemory(a.config.SystemPrompt, memoryStr, input)
	if a.logger.IsDebug() {
		a.logger.Debug("会话 %s 发送 %d 条消息, 记忆上下文 %d 字", sessionID, len(messages), len([]rune(memoryStr)))
	}

	upstream, err := a.llm.Response(ctx, sessionID, messages)
	if err != nil {
		session.turnMu.Unlock()
		return nil, fmt.Errorf("调用LLM失败: %w", err)
	}

	out := make(chan types.Response, 16)
	go func() {
		defer session.turnMu.Unlock()
		defer close(out)

		var reply strings.Builder
		failed := false
		for resp := range upstream {
			if resp.Error != "" {
				failed = true
				a.logger.Error("会话 %s LLM响应异常: %s", sessionID, resp.Error)
			}
			reply.WriteString(resp.Content)
			select {
			case out <- resp:
			case <-ctx.Done():
			}
		}

		text := strings.TrimSpace(reply.String())
		if failed || text == "" || ctx.Err() != nil {
			return
		}
		a.remember(ctx, session, input, text)
	}()
	return out, nil
}

// remember 保存一轮成功的对话
func (a *Agent) remember(ctx context.Context, session *Session, input, reply string) {
	session.dialogue.Put(
		types.Message{Role: types.RoleUser, Content: input},
		types.Message{Role: types.RoleAssistant, Content: reply},
	)

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	if err := a.memory.AddMessage(storeCtx, input, memory.RoleUser); err != nil {
		a.logger.Warn("保存用户记忆失败: %v", err)
	}
	if err := a.memory.AddMessage(storeCtx, reply, memory.RoleAI); err != nil {
		a.logger.Warn("保存AI记忆失败: %v", err)
	}
	if transcripts := a.sessions.Transcripts(); transcripts != nil {
		err := transcripts.AppendTurns(storeCtx, session.ID,
			types.Message{Role: types.RoleUser, Content: input},
			types.Message{Role: types.RoleAssistant, Content: reply},
		)
		if err != nil {
			a.logger.Warn("保存对话记录失败: %v", err)
		}
	}
}

// Respond 处理一轮对话并返回完整回复
func (a *Agent) Respond(ctx context.Context, sessionID, input string) (string, error) {
	stream, err := a.StreamResponse(ctx, sessionID, input)
	if err != nil {
		return "", err
	}
	var reply strings.Builder
	var upstreamErr string
	for resp := range stream {
		if resp.Error != "" {
			upstreamErr = resp.Error
		}
		reply.WriteString(resp.Content)
	}
	if upstreamErr != "" {
		return "", fmt.Errorf("%w: %s", ErrUpstream, upstreamErr)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(reply.String()), nil
}

// Clear 清空会话历史和长期记忆
func (a *Agent) Clear(ctx context.Context, sessionID string) error {
	if session, ok := a.sessions.Lookup(sessionID); ok {
		session.turnMu.Lock()
		session.dialogue.Clear()
		session.turnMu.Unlock()
	}
	if transcripts := a.sessions.Transcripts(); transcripts != nil {
		if err := transcripts.DeleteSession(ctx, sessionID); err != nil {
			return fmt.Errorf("清空对话记录失败: %w", err)
		}
	}
	if err := a.memory.Clear(ctx); err != nil {
		return fmt.Errorf("清空记忆失败: %w", err)
	}
	a.logger.Info("会话 %s 的历史和记忆已清空", sessionID)
	return nil
}
