package chat

import (
	"encoding/json"
	"sync"

	"noir-server-go/src/core/types"
)

type Message = types.Message

// DialogueManager 管理对话上下文和历史
type DialogueManager struct {
	mu       sync.RWMutex
	dialogue []Message
	limit    int
}

// NewDialogueManager 创建对话管理器实例，limit 为保留的最大消息数，0 表示不限制
func NewDialogueManager(limit int) *DialogueManager {
	return &DialogueManager{
		dialogue: make([]Message, 0),
		limit:    limit,
	}
}

// Put 添加新消息到对话
func (dm *DialogueManager) Put(messages ...Message) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.dialogue = append(dm.dialogue, messages...)
	dm.trimLocked()
}

// trimLocked 超出上限时从最早的消息开始丢弃，保证历史以用户消息开头
func (dm *DialogueManager) trimLocked() {
	if dm.limit <= 0 || len(dm.dialogue) <= dm.limit {
		return
	}
	drop := len(dm.dialogue) - dm.limit
	for drop < len(dm.dialogue) && dm.dialogue[drop].Role != types.RoleUser {
		drop++
	}
	dm.dialogue = append([]Message(nil), dm.dialogue[drop:]...)
}

// History 返回对话历史的副本
func (dm *DialogueManager) History() []Message {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make([]Message, len(dm.dialogue))
	copy(out, dm.dialogue)
	return out
}

// Len 当前历史消息数
func (dm *DialogueManager) Len() int {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return len(dm.dialogue)
}

// GetLLMDialogue 获取发送给LLM的完整对话：系统提示词 + 历史
func (dm *DialogueManager) GetLLMDialogue(systemPrompt string) []Message {
	history := dm.History()
	dialogue := make([]Message, 0, len(history)+1)
	if systemPrompt != "" {
		dialogue = append(dialogue, Message{Role: types.RoleSystem, Content: systemPrompt})
	}
	return append(dialogue, history...)
}

// GetLLMDialogueWithMemory 获取带记忆的对话：系统提示词 + 历史 + 附带记忆上下文的本轮输入
func (dm *DialogueManager) GetLLMDialogueWithMemory(systemPrompt, memoryStr, input string) []Message {
	dialogue := dm.GetLLMDialogue(systemPrompt)
	return append(dialogue, Message{
		Role:    types.RoleUser,
		Content: EnhanceInput(memoryStr, input),
	})
}

// EnhanceInput 将召回的记忆拼接到用户输入之前
func EnhanceInput(memoryStr, input string) string {
	if memoryStr == "" {
		return input
	}
	return memoryStr + "\n\nCurrent message: " + input
}

// Clear 清空对话历史
func (dm *DialogueManager) Clear() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.dialogue = make([]Message, 0)
}

// ToJSON 将对话历史转换为JSON字符串
func (dm *DialogueManager) ToJSON() (string, error) {
	bytes, err := json.Marshal(dm.History())
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// LoadFromJSON 从JSON字符串加载对话历史
func (dm *DialogueManager) LoadFromJSON(jsonStr string) error {
	var dialogue []Message
	if err := json.Unmarshal([]byte(jsonStr), &dialogue); err != nil {
		return err
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.dialogue = dialogue
	dm.trimLocked()
	return nil
}
