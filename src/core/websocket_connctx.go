package core

import (
	"context"
	"fmt"
	"sync/atomic"

	"noir-server-go/src/core/utils"
)

// ConnectionContext 连接上下文，关闭时取消该连接上所有进行中的请求
type ConnectionContext struct {
	handler  *ConnectionHandler
	clientID string
	logger   *utils.Logger
	conn     Conn
	cancel   context.CancelFunc
	closed   atomic.Bool
}

// NewConnectionContext 创建新的连接上下文
func NewConnectionContext(handler *ConnectionHandler, clientID string, logger *utils.Logger, conn Conn,
	cancel context.CancelFunc) *ConnectionContext {
	return &ConnectionContext{
		handler:  handler,
		clientID: clientID,
		logger:   logger,
		conn:     conn,
		cancel:   cancel,
	}
}

// Close 取消上下文并关闭连接，可重复调用
func (c *ConnectionContext) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.cancel()
	if c.handler != nil {
		c.handler.Close()
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("关闭连接时发生错误: %v", err)
		}
	}
	c.logger.Info("客户端 %s 连接已关闭", c.clientID)
	return nil
}
