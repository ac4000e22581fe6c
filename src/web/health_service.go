package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"noir-server-go/src/core/health"

	"github.com/gin-gonic/gin"
)

// 重新检查的最小间隔，避免频繁调用上游接口
const healthRefreshInterval = 30 * time.Second

type DefaultHealthService struct {
	deps *Deps

	mu        sync.Mutex
	lastCheck time.Time
}

// NewDefaultHealthService 构造函数
func NewDefaultHealthService(deps *Deps) *DefaultHealthService {
	return &DefaultHealthService{deps: deps}
}

// Start 注册健康检查路由
func (s *DefaultHealthService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	apiGroup.GET("/health", s.handleHealth)

	s.deps.Logger.Info("Health HTTP服务路由注册完成")
	return nil
}

// handleHealth 返回最近一次检查结果，refresh=1 时重新执行基础检查
func (s *DefaultHealthService) handleHealth(c *gin.Context) {
	checker := s.deps.Health
	if checker == nil {
		c.JSON(http.StatusOK, gin.H{"healthy": true, "results": gin.H{}})
		return
	}

	if c.Query("refresh") == "1" && s.shouldRefresh() {
		checker.CheckAllProviders(c.Request.Context(), health.BasicCheck)
	}

	status := http.StatusOK
	healthy := checker.Healthy()
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy, "results": checker.GetResults()})
}

func (s *DefaultHealthService) shouldRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.lastCheck) < healthRefreshInterval {
		return false
	}
	s.lastCheck = time.Now()
	return true
}
