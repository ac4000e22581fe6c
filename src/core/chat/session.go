package chat

import (
	"context"
	"sync"
	"time"

	"noir-server-go/src/core/utils"
)

// Session 一个会话的对话状态，turnMu 串行化同一会话内的多轮对话
type Session struct {
	ID         string
	dialogue   *DialogueManager
	turnMu     sync.Mutex
	lastActive time.Time
	mu         sync.Mutex
}

// Dialogue 返回会话的对话管理器
func (s *Session) Dialogue() *DialogueManager {
	return s.dialogue
}

// LastActive 最近一次活跃时间
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// SessionStore 按会话ID管理对话历史
type SessionStore struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	transcripts  TranscriptStore
	historyLimit int
	logger       *utils.Logger
}

// NewSessionStore 创建会话存储，transcripts 为 nil 时不做持久化
func NewSessionStore(transcripts TranscriptStore, historyLimit int, logger *utils.Logger) *SessionStore {
	return &SessionStore{
		sessions:     make(map[string]*Session),
		transcripts:  transcripts,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Transcripts 返回对话记录存储，可能为 nil
func (s *SessionStore) Transcripts() TranscriptStore {
	return s.transcripts
}

// Get 获取会话，首次使用时从对话记录中恢复历史
func (s *SessionStore) Get(ctx context.Context, id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		session.touch()
		return session
	}

	session := &Session{
		ID:         id,
		dialogue:   NewDialogueManager(s.historyLimit),
		lastActive: time.Now(),
	}
	if s.transcripts != nil {
		history, err := s.transcripts.LoadDialogue(ctx, id, s.historyLimit)
		if err != nil {
			s.logger.Warn("恢复会话 %s 的历史失败: %v", id, err)
		} else if len(history) > 0 {
			session.dialogue.Put(history...)
			s.logger.Info("会话 %s 已恢复 %d 条历史消息", id, len(history))
		}
	}
	s.sessions[id] = session
	return session
}

// Lookup 获取已存在的会话，不创建
func (s *SessionStore) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Delete 删除会话及其对话记录
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	if s.transcripts == nil {
		return nil
	}
	return s.transcripts.DeleteSession(ctx, id)
}

// Len 当前内存中的会话数
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Evict 清理超过 idle 未活跃的会话，返回清理数量
func (s *SessionStore) Evict(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline := time.Now().Add(-idle)
	evicted := 0
	for id, session := range s.sessions {
		if session.LastActive().Before(deadline) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}
