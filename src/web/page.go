package web

import (
	"context"
	_ "embed"
	"net/http"
	"os"
	"path/filepath"

	"noir-server-go/src/configs"
	"noir-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

//go:embed static/index.html
var indexHTML []byte

// PageService 聊天页面，static_dir 中有 index.html 时优先使用
type PageService struct {
	config *configs.Config
	logger *utils.Logger
}

// NewPageService 构造函数
func NewPageService(config *configs.Config, logger *utils.Logger) *PageService {
	return &PageService{config: config, logger: logger}
}

// Start 注册页面路由
func (s *PageService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	dir := s.config.Web.StaticDir
	if dir != "" {
		if _, err := os.Stat(filepath.Join(dir, "index.html")); err == nil {
			engine.StaticFile("/", filepath.Join(dir, "index.html"))
			engine.Static("/static", dir)
			s.logger.Info("使用自定义页面目录: %s", dir)
			return nil
		}
		s.logger.Warn("页面目录 %s 中没有 index.html，使用内置页面", dir)
	}
	engine.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})
	return nil
}
