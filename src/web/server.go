package web

import (
	"context"
	"fmt"

	"noir-server-go/src/configs"
	"noir-server-go/src/configs/server"
	"noir-server-go/src/core/auth"
	"noir-server-go/src/core/chat"
	"noir-server-go/src/core/health"
	"noir-server-go/src/core/memory"
	"noir-server-go/src/core/providers"
	"noir-server-go/src/core/speech"
	"noir-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

// Deps Web服务依赖的组件，Speaker/ASR 为空时对应功能关闭
type Deps struct {
	Config  *configs.Config
	Logger  *utils.Logger
	Agent   *chat.Agent
	Speaker *speech.Speaker
	ASR     providers.ASRProvider
	Memory  memory.Store
	Auth    *auth.AuthToken
	Health  *health.HealthChecker
}

// NewRouter 创建gin引擎并注册全部服务
func NewRouter(ctx context.Context, deps *Deps) (*gin.Engine, error) {
	if deps.Memory == nil {
		deps.Memory = memory.Disabled{}
	}

	router := gin.New()
	router.Use(gin.Recovery(), CORS())
	if deps.Logger.IsDebug() {
		router.Use(gin.Logger())
	}
	router.SetTrustedProxies(nil)

	// API路由全部挂载到/api前缀下
	apiGroup := router.Group("/api")

	cfgService, err := server.NewDefaultCfgService(deps.Config, deps.Logger)
	if err != nil {
		return nil, err
	}

	services := []Service{
		NewPageService(deps.Config, deps.Logger),
		cfgService,
		NewDefaultChatService(deps),
		NewDefaultTTSService(deps),
		NewDefaultMemoryService(deps),
		NewDefaultHealthService(deps),
	}
	for _, service := range services {
		if err := service.Start(ctx, router, apiGroup); err != nil {
			return nil, fmt.Errorf("注册HTTP服务失败: %w", err)
		}
	}
	return router, nil
}
