package web

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Service 一组HTTP路由，启动时注册到 engine 与 apiGroup
type Service interface {
	Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error
}
