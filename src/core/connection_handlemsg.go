package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"noir-server-go/src/core/types"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// handleMessage 处理接收到的消息
func (h *ConnectionHandler) handleMessage(ctx context.Context, messageType int, message []byte) error {
	switch messageType {
	case websocket.TextMessage:
		var msg types.ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type == "" {
			return h.sendErrorMessage("消息格式错误")
		}
		// hello 与 abort 需要立即处理，其余消息按顺序排队
		switch msg.Type {
		case types.MsgHello:
			return h.handleHelloMessage(ctx, msg)
		case types.MsgAbort:
			h.clientAbortChat()
			return nil
		case types.MsgPing:
			return h.sendMessage(types.ServerMessage{Type: types.MsgPong})
		}
		select {
		case h.clientTextQueue <- msg:
			return nil
		default:
			return h.sendErrorMessage("消息过多，请稍后再试")
		}
	case websocket.BinaryMessage:
		if len(message) > maxAudioMessage {
			return h.sendErrorMessage("音频过大")
		}
		select {
		case h.clientAudioQueue <- message:
			return nil
		default:
			return h.sendErrorMessage("消息过多，请稍后再试")
		}
	default:
		return fmt.Errorf("未知的消息类型: %d", messageType)
	}
}

// processClientTextMessage 按类型分发排队的文本消息
func (h *ConnectionHandler) processClientTextMessage(ctx context.Context, msg types.ClientMessage) error {
	switch msg.Type {
	case types.MsgChat:
		return h.handleChatMessage(ctx, msg.Text, msg.Speak)
	case types.MsgClear:
		return h.handleClearMessage(ctx)
	default:
		return h.sendErrorMessage(fmt.Sprintf("不支持的消息类型: %s", msg.Type))
	}
}

// handleHelloMessage 绑定会话，开启认证时校验令牌
func (h *ConnectionHandler) handleHelloMessage(ctx context.Context, msg types.ClientMessage) error {
	sessionID := strings.TrimSpace(msg.SessionID)

	if h.deps.Auth != nil {
		if sessionID == "" {
			if ok, tokenSession, err := h.deps.Auth.VerifyToken(msg.Token); err == nil && ok {
				sessionID = tokenSession
			}
		}
		if err := h.deps.Auth.Authorize("Bearer "+msg.Token, sessionID); err != nil {
			h.logger.Warn("WebSocket认证失败: %v", err)
			h.sendErrorMessage("无效的认证token或token已过期")
			h.Close()
			return nil
		}
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	h.setSession(sessionID)
	h.deps.Agent.Sessions().Get(ctx, sessionID)
	h.logger.Info("客户端绑定会话: %s", sessionID)
	return h.sendHelloMessage(sessionID)
}

// handleClearMessage 清空会话历史和记忆
func (h *ConnectionHandler) handleClearMessage(ctx context.Context) error {
	sessionID, err := h.requireSession()
	if err != nil {
		return h.sendErrorMessage(err.Error())
	}
	if err := h.deps.Agent.Clear(ctx, sessionID); err != nil {
		return h.sendErrorMessage(err.Error())
	}
	return h.sendMessage(types.ServerMessage{Type: types.MsgCleared, SessionID: sessionID})
}
