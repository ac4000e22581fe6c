package models

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"noir-server-go/src/core/types"
)

// Session 聊天会话
type Session struct {
	ID           string    `gorm:"primaryKey;size:64"`
	CreatedAt    time.Time
	LastActiveAt time.Time `gorm:"index"`
	Turns        []Turn    `gorm:"constraint:OnDelete:CASCADE"`
}

// Turn 一条对话记录
type Turn struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"index;size:64;not null"`
	Role      string    `gorm:"size:16;not null"` // user/assistant
	Content   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

// AutoMigrate 创建或更新表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Session{}, &Turn{})
}

// TranscriptStore 基于gorm的对话记录存储
type TranscriptStore struct {
	db *gorm.DB
}

// NewTranscriptStore 创建对话记录存储并迁移表结构
func NewTranscriptStore(db *gorm.DB) (*TranscriptStore, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("迁移对话记录表失败: %w", err)
	}
	return &TranscriptStore{db: db}, nil
}

// TouchSession 创建会话或更新其活跃时间
func (s *TranscriptStore) TouchSession(ctx context.Context, sessionID string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_active_at": now}),
	}).Create(&Session{ID: sessionID, CreatedAt: now, LastActiveAt: now}).Error
}

// AppendTurn 追加一条对话记录
func (s *TranscriptStore) AppendTurn(ctx context.Context, sessionID, role, content string) error {
	return s.AppendTurns(ctx, sessionID, types.Message{Role: role, Content: content})
}

// AppendTurns 在一个事务中追加多条对话记录
func (s *TranscriptStore) AppendTurns(ctx context.Context, sessionID string, messages ...types.Message) error {
	if len(messages) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := &TranscriptStore{db: tx}
		if err := store.TouchSession(ctx, sessionID); err != nil {
			return fmt.Errorf("更新会话失败: %w", err)
		}
		now := time.Now()
		turns := make([]Turn, 0, len(messages))
		for i, m := range messages {
			turns = append(turns, Turn{
				SessionID: sessionID,
				Role:      m.Role,
				Content:   m.Content,
				// 同一批次内保持先后顺序
				CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			})
		}
		if err := tx.Create(&turns).Error; err != nil {
			return fmt.Errorf("写入对话记录失败: %w", err)
		}
		return nil
	})
}

// History 最近 limit 条记录，按时间正序，limit<=0 返回全部
func (s *TranscriptStore) History(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	var turns []Turn
	query := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("查询对话记录失败: %w", err)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// LoadDialogue 以LLM消息格式返回会话历史
func (s *TranscriptStore) LoadDialogue(ctx context.Context, sessionID string, limit int) ([]types.Message, error) {
	turns, err := s.History(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	messages := make([]types.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, types.Message{Role: t.Role, Content: t.Content})
	}
	return messages, nil
}

// CountTurns 会话的记录数
func (s *TranscriptStore) CountTurns(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Turn{}).Where("session_id = ?", sessionID).Count(&n).Error
	return n, err
}

// DeleteSession 删除会话及其全部记录
func (s *TranscriptStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&Turn{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", sessionID).Delete(&Session{}).Error
	})
}

// GetSession 查询会话
func (s *TranscriptStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	if err := s.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &session, nil
}
