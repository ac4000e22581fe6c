package chat

import (
	"context"

	"noir-server-go/src/core/memory"
)

// MemoryInterface 定义对话记忆管理接口
type MemoryInterface interface {
	// Query 查询相关记忆
	Query(ctx context.Context, prompt string, topK int, role string) ([]memory.Record, error)

	// AddMessage 保存一条消息
	AddMessage(ctx context.Context, text, role string) error

	// Clear 清空记忆
	Clear(ctx context.Context) error
}

// TranscriptStore 对话记录持久化，用于重启后恢复会话历史
type TranscriptStore interface {
	AppendTurns(ctx context.Context, sessionID string, messages ...Message) error
	LoadDialogue(ctx context.Context, sessionID string, limit int) ([]Message, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
