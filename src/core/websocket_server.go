package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"noir-server-go/src/configs"
	"noir-server-go/src/core/auth"
	"noir-server-go/src/core/chat"
	"noir-server-go/src/core/providers"
	"noir-server-go/src/core/speech"
	"noir-server-go/src/core/utils"

	"github.com/gorilla/websocket"
)

const (
	// 清理过期连接与会话的周期
	janitorInterval = time.Minute
	// 内存中的会话空闲超过该时间后释放，下次使用时从对话记录恢复
	sessionIdleTimeout = time.Hour
)

// Deps 连接处理依赖的组件，Speaker/ASR/Auth 可为空
type Deps struct {
	Agent   *chat.Agent
	Speaker *speech.Speaker
	ASR     providers.ASRProvider
	Auth    *auth.AuthToken
}

// WebSocketServer WebSocket服务器结构
type WebSocketServer struct {
	config            *configs.Config
	server            *http.Server
	upgrader          Upgrader
	logger            *utils.Logger
	deps              Deps
	activeConnections sync.Map
}

// Upgrader WebSocket升级器接口
type Upgrader interface {
	Upgrade(w http.ResponseWriter, r *http.Request) (Conn, error)
}

// Conn WebSocket连接接口
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// NewWebSocketServer 创建新的WebSocket服务器
func NewWebSocketServer(config *configs.Config, deps Deps, logger *utils.Logger) (*WebSocketServer, error) {
	if deps.Agent == nil {
		return nil, fmt.Errorf("对话代理未初始化")
	}
	return &WebSocketServer{
		config:   config,
		logger:   logger,
		upgrader: NewDefaultUpgrader(),
		deps:     deps,
	}, nil
}

// Handler 返回处理WebSocket升级的HTTP处理器
func (ws *WebSocketServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", ws.handleWebSocket)
	return mux
}

// Start 启动WebSocket服务器
func (ws *WebSocketServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", ws.config.Server.IP, ws.config.Server.Port)
	ws.server = &http.Server{
		Addr:    addr,
		Handler: ws.Handler(),
	}

	ws.logger.Info("正在启动WebSocket服务器于 ws://%s...", addr)

	go ws.janitor(ctx)

	if err := ws.server.ListenAndServe(); err != nil {
		if err == http.ErrServerClosed {
			ws.logger.Info("服务器已正常关闭")
			return nil
		}
		ws.logger.Error("服务器启动失败: %v", err)
		return fmt.Errorf("服务器启动失败: %v", err)
	}
	return nil
}

// janitor 定期关闭过期连接并释放空闲会话
func (ws *WebSocketServer) janitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ws.activeConnections.Range(func(key, value interface{}) bool {
				connCtx := value.(*ConnectionContext)
				if wc, ok := connCtx.conn.(*websocketConn); ok && wc.IsStale(readTimeout) {
					ws.logger.Info("客户端 %s 长时间无活动，关闭连接", key)
					connCtx.Close()
				}
				return true
			})
			if n := ws.deps.Agent.Sessions().Evict(sessionIdleTimeout); n > 0 {
				ws.logger.Info("释放了 %d 个空闲会话", n)
			}
		}
	}
}

// defaultUpgrader 默认的WebSocket升级器实现
type defaultUpgrader struct {
	wsUpgrader *websocket.Upgrader
}

// NewDefaultUpgrader 创建默认的WebSocket升级器
func NewDefaultUpgrader() *defaultUpgrader {
	return &defaultUpgrader{
		wsUpgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有来源的连接
			},
		},
	}
}

// Upgrade 实现Upgrader接口
func (u *defaultUpgrader) Upgrade(w http.ResponseWriter, r *http.Request) (Conn, error) {
	conn, err := u.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newWebsocketConn(conn), nil
}

// Stop 停止WebSocket服务器
func (ws *WebSocketServer) Stop() error {
	ws.activeConnections.Range(func(key, value interface{}) bool {
		value.(*ConnectionContext).Close()
		return true
	})
	if ws.server == nil {
		return nil
	}
	ws.logger.Info("正在关闭WebSocket服务器...")
	if err := ws.server.Close(); err != nil {
		return fmt.Errorf("服务器关闭失败: %v", err)
	}
	return nil
}

// handleWebSocket 处理WebSocket连接
func (ws *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r)
	if err != nil {
		ws.logger.Error("WebSocket升级失败: %v", err)
		return
	}

	clientID := fmt.Sprintf("%p", conn)
	ctx, cancel := context.WithCancel(context.Background())
	handler := NewConnectionHandler(ws.config, ws.deps, ws.logger)
	connCtx := NewConnectionContext(handler, clientID, ws.logger, conn, cancel)
	ws.activeConnections.Store(clientID, connCtx)
	ws.logger.Info("客户端 %s (%s) 已连接，当前连接数: %d", clientID, r.RemoteAddr, ws.ActiveConnections())

	go func() {
		defer ws.activeConnections.Delete(clientID)
		defer connCtx.Close()
		handler.Handle(ctx, conn)
	}()
}

// ActiveConnections 当前连接数
func (ws *WebSocketServer) ActiveConnections() int {
	n := 0
	ws.activeConnections.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
