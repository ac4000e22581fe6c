package web

import (
	"context"
	"net/http"
	"strconv"

	"noir-server-go/src/core/memory"

	"github.com/gin-gonic/gin"
)

type DefaultMemoryService struct {
	deps *Deps
}

// NewDefaultMemoryService 构造函数
func NewDefaultMemoryService(deps *Deps) *DefaultMemoryService {
	return &DefaultMemoryService{deps: deps}
}

// Start 注册记忆相关路由
func (s *DefaultMemoryService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	secured := apiGroup.Group("/memory", RequireAuth(s.deps.Auth))
	secured.GET("/stats", s.handleStats)
	secured.GET("/search", s.handleSearch)
	secured.GET("/recent", s.handleRecent)
	secured.DELETE("", s.handleClear)

	s.deps.Logger.Info("Memory HTTP服务路由注册完成")
	return nil
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func (s *DefaultMemoryService) handleStats(c *gin.Context) {
	stats, err := s.deps.Memory.Stats(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"enabled": s.deps.Memory.Enabled(),
		"stats":   stats,
	})
}

// handleSearch 默认语义检索，mode=keyword 时按关键词匹配
func (s *DefaultMemoryService) handleSearch(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		respondError(c, http.StatusBadRequest, "缺少查询参数 q")
		return
	}
	topK := queryInt(c, "top_k", 5)

	var records []memory.Record
	var err error
	if c.Query("mode") == "keyword" {
		records, err = s.deps.Memory.SearchKeyword(c.Request.Context(), q, topK)
	} else {
		records, err = s.deps.Memory.Query(c.Request.Context(), q, topK, c.Query("role"))
	}
	if err != nil {
		respondError(c, http.StatusBadGateway, "Error: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": nonNil(records)})
}

func (s *DefaultMemoryService) handleRecent(c *gin.Context) {
	records, err := s.deps.Memory.Recent(c.Request.Context(), queryInt(c, "count", 10), c.Query("role"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": nonNil(records)})
}

func (s *DefaultMemoryService) handleClear(c *gin.Context) {
	if err := s.deps.Memory.Clear(c.Request.Context()); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.deps.Logger.Info("记忆已通过API清空")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "记忆已清空"})
}

func nonNil(records []memory.Record) []memory.Record {
	if records == nil {
		return []memory.Record{}
	}
	return records
}
