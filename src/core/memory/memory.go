// Package memory 提供基于向量检索的长期对话记忆（RAG）
package memory

import (
	"context"
	"time"
)

// 记忆中的角色
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// DefaultCollection 默认集合名称
const DefaultCollection = "chat_memory"

// Record 一条对话记忆
type Record struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Distance  float32   `json:"distance,omitempty"`
}

// Stats 记忆统计
type Stats struct {
	TotalMessages  int    `json:"total_messages"`
	UserMessages   int    `json:"user_messages"`
	AIMessages     int    `json:"ai_messages"`
	CollectionName string `json:"collection_name"`
}

// Store 对话记忆存储
type Store interface {
	// AddMessage 写入一条消息，空文本忽略
	AddMessage(ctx context.Context, text, role string) error
	// Query 语义检索，role 为空时不过滤角色
	Query(ctx context.Context, prompt string, topK int, role string) ([]Record, error)
	// Recent 按写入顺序返回最近的 count 条
	Recent(ctx context.Context, count int, role string) ([]Record, error)
	Count(ctx context.Context, role string) (int, error)
	Stats(ctx context.Context) (Stats, error)
	// SearchKeyword 不区分大小写的子串匹配
	SearchKeyword(ctx context.Context, keyword string, topK int) ([]Record, error)
	Clear(ctx context.Context) error
	Enabled() bool
	Close() error
}

// Config 记忆配置
type Config struct {
	Type        string
	PersistDir  string
	Collection  string
	ModelName   string
	BaseURL     string
	APIKey      string
	Compress    bool
	MaxDistance float64
}

// Contents 提取记录的文本
func Contents(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Content)
	}
	return out
}
