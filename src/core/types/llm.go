package types

import (
	"context"
	"encoding/json"
	"fmt"
)

// 对话角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 对话消息结构
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (m *Message) Print() {
	//转为json字符串
	jsonStr, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		fmt.Println("json marshal error:", err)
		return
	}
	fmt.Println(string(jsonStr))
}

// Response LLM流式响应片段，上游出错时以Error字段作为最后一个片段
type Response struct {
	Content    string `json:"content,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Provider 基础提供者接口
type Provider interface {
	Initialize() error
	Cleanup() error
}

// LLMProvider 大语言模型提供者接口
type LLMProvider interface {
	Provider
	Response(ctx context.Context, sessionID string, messages []Message) (<-chan Response, error)
}
