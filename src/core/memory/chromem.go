package memory

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"noir-server-go/src/core/utils"

	chromem "github.com/philippgille/chromem-go"
)

const idFormat = "turn-%08d"

// ChromemStore 基于 chromem-go 持久化向量库的记忆存储
type ChromemStore struct {
	db          *chromem.DB
	collection  *chromem.Collection
	name        string
	embedder    Embedder
	maxDistance float32
	logger      *utils.Logger

	mu     sync.RWMutex
	seq    int
	counts map[string]int
}

// NewChromemStore 打开（或创建）持久化目录中的集合，并恢复写入序号与角色计数
func NewChromemStore(ctx context.Context, cfg Config, embedder Embedder, logger *utils.Logger) (*ChromemStore, error) {
	persistDir := cfg.PersistDir
	if persistDir == "" {
		persistDir = "rag_db"
	}
	if err := os.MkdirAll(persistDir, 0755); err != nil {
		return nil, fmt.Errorf("创建记忆目录失败: %v", err)
	}
	db, err := chromem.NewPersistentDB(persistDir, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("打开向量数据库失败: %w", err)
	}

	name := cfg.Collection
	if name == "" {
		name = DefaultCollection
	}
	maxDistance := cfg.MaxDistance
	if maxDistance <= 0 {
		maxDistance = 1.0
	}

	s := &ChromemStore{
		db:          db,
		name:        name,
		embedder:    embedder,
		maxDistance: float32(maxDistance),
		logger:      logger,
		counts:      make(map[string]int),
	}
	if err := s.openCollection(); err != nil {
		return nil, err
	}
	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	logger.Info("记忆库已加载: %s/%s, 共 %d 条", persistDir, name, s.seq)
	return s, nil
}

func (s *ChromemStore) openCollection() error {
	col, err := s.db.GetOrCreateCollection(s.name, map[string]string{"hnsw:space": "cosine"}, s.embedder.Embed)
	if err != nil {
		return fmt.Errorf("创建记忆集合失败: %w", err)
	}
	s.collection = col
	return nil
}

// restore 文档ID按写入顺序递增，扫描一遍即可恢复序号与计数
func (s *ChromemStore) restore(ctx context.Context) error {
	total := s.collection.Count()
	for i := 1; i <= total; i++ {
		doc, err := s.collection.GetByID(ctx, fmt.Sprintf(idFormat, i))
		if err != nil {
			s.logger.Warn("记忆 %d 读取失败: %v", i, err)
			continue
		}
		s.counts[doc.Metadata["role"]]++
	}
	s.seq = total
	return nil
}

// Enabled 记忆可用
func (s *ChromemStore) Enabled() bool {
	return true
}

// AddMessage 写入一条消息
func (s *ChromemStore) AddMessage(ctx context.Context, text, role string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if role == "" {
		role = RoleUser
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.seq + 1
	doc := chromem.Document{
		ID:        fmt.Sprintf(idFormat, seq),
		Content:   text,
		Embedding: embedding,
		Metadata: map[string]string{
			"role":       role,
			"created_at": time.Now().Format(time.RFC3339Nano),
			"seq":        strconv.Itoa(seq),
		},
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("写入记忆失败: %w", err)
	}
	s.seq = seq
	s.counts[role]++
	s.logger.Debug("已写入%s记忆 (ID: %s)", role, doc.ID)
	return nil
}

// Query 语义检索，过滤掉距离不小于阈值的结果
func (s *ChromemStore) Query(ctx context.Context, prompt string, topK int, role string) ([]Record, error) {
	if topK <= 0 || strings.TrimSpace(prompt) == "" {
		return nil, nil
	}

	s.mu.RLock()
	available := s.countLocked(role)
	col := s.collection
	s.mu.RUnlock()

	n := min(topK, available)
	if n == 0 {
		return nil, nil
	}

	embedding, err := s.embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var where map[string]string
	if role != "" {
		where = map[string]string{"role": role}
	}
	results, err := col.QueryEmbedding(ctx, embedding, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("检索记忆失败: %w", err)
	}

	records := make([]Record, 0, len(results))
	for _, r := range results {
		distance := 1 - r.Similarity
		if distance >= s.maxDistance {
			continue
		}
		rec := toRecord(r.ID, r.Content, r.Metadata)
		rec.Distance = distance
		records = append(records, rec)
	}
	s.logger.Debug("找到 %d 条相关记忆", len(records))
	return records, nil
}

// Recent 最近的消息，按写入顺序排列
func (s *ChromemStore) Recent(ctx context.Context, count int, role string) ([]Record, error) {
	if count <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []Record
	for i := s.seq; i >= 1 && len(records) < count; i-- {
		doc, err := s.collection.GetByID(ctx, fmt.Sprintf(idFormat, i))
		if err != nil {
			continue
		}
		if role != "" && doc.Metadata["role"] != role {
			continue
		}
		records = append(records, toRecord(doc.ID, doc.Content, doc.Metadata))
	}
	// 倒序收集后翻转为写入顺序
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Count 消息数量，role 为空时统计全部
func (s *ChromemStore) Count(ctx context.Context, role string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(role), nil
}

func (s *ChromemStore) countLocked(role string) int {
	if role == "" {
		return s.collection.Count()
	}
	return s.counts[role]
}

// Stats 记忆统计
func (s *ChromemStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		TotalMessages:  s.countLocked(""),
		UserMessages:   s.counts[RoleUser],
		AIMessages:     s.counts[RoleAI],
		CollectionName: s.name,
	}, nil
}

// SearchKeyword 按写入顺序查找包含关键词的消息
func (s *ChromemStore) SearchKeyword(ctx context.Context, keyword string, topK int) ([]Record, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" || topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []Record
	for i := 1; i <= s.seq && len(records) < topK; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := s.collection.GetByID(ctx, fmt.Sprintf(idFormat, i))
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(doc.Content), keyword) {
			records = append(records, toRecord(doc.ID, doc.Content, doc.Metadata))
		}
	}
	s.logger.Debug("关键词 '%s' 命中 %d 条记忆", keyword, len(records))
	return records, nil
}

// Clear 删除并重建集合
func (s *ChromemStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("删除记忆集合失败: %w", err)
	}
	if err := s.openCollection(); err != nil {
		return err
	}
	s.seq = 0
	s.counts = make(map[string]int)
	s.logger.Info("记忆已清空")
	return nil
}

// Close 释放嵌入器资源，数据在写入时已持久化
func (s *ChromemStore) Close() error {
	if closer, ok := s.embedder.(interface{ Close() }); ok {
		closer.Close()
	}
	return nil
}

func toRecord(id, content string, metadata map[string]string) Record {
	rec := Record{
		ID:      id,
		Role:    metadata["role"],
		Content: content,
	}
	if t, err := time.Parse(time.RFC3339Nano, metadata["created_at"]); err == nil {
		rec.CreatedAt = t
	}
	return rec
}
