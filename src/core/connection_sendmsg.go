package core

import (
	"fmt"

	"noir-server-go/src/core/types"

	"github.com/gorilla/websocket"
)

// sendMessage 序列化并发送一条消息
func (h *ConnectionHandler) sendMessage(msg types.ServerMessage) error {
	if h.conn == nil {
		return fmt.Errorf("连接对象未初始化，无法发送%s消息", msg.Type)
	}
	data, err := h.marshal(msg)
	if err != nil {
		return err
	}
	if err := h.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("发送%s消息失败: %v", msg.Type, err)
	}
	return nil
}

// sendHelloMessage 发送欢迎消息
func (h *ConnectionHandler) sendHelloMessage(sessionID string) error {
	return h.sendMessage(types.ServerMessage{
		Type:      types.MsgHello,
		SessionID: sessionID,
	})
}

// sendErrorMessage 发送错误消息
func (h *ConnectionHandler) sendErrorMessage(message string) error {
	return h.sendMessage(types.ServerMessage{
		Type:    types.MsgError,
		Message: message,
	})
}
