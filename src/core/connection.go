package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"noir-server-go/src/configs"
	"noir-server-go/src/core/providers/asr"
	"noir-server-go/src/core/speech"
	"noir-server-go/src/core/types"
	"noir-server-go/src/core/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 单条音频消息的最大长度
const maxAudioMessage = 25 * 1024 * 1024

// ConnectionHandler 连接处理器结构
type ConnectionHandler struct {
	config    *configs.Config
	logger    *utils.TaggedLogger
	deps      Deps
	conn      Conn
	closeOnce sync.Once

	// 会话相关
	mu            sync.Mutex
	sessionID     string
	authenticated bool
	turnCancel    context.CancelFunc

	// 并发控制
	stopChan         chan struct{}
	clientAudioQueue chan []byte
	clientTextQueue  chan types.ClientMessage

	talkRound      int       // 轮次计数
	roundStartTime time.Time // 轮次开始时间
}

// NewConnectionHandler 创建新的连接处理器
func NewConnectionHandler(config *configs.Config, deps Deps, logger *utils.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		config:           config,
		logger:           logger.WithTag("WS"),
		deps:             deps,
		sessionID:        uuid.New().String(), // 未发送hello时使用的会话ID
		stopChan:         make(chan struct{}),
		clientAudioQueue: make(chan []byte, 10),
		clientTextQueue:  make(chan types.ClientMessage, 100),
	}
}

// Handle 处理WebSocket连接，直到连接断开或 ctx 被取消
func (h *ConnectionHandler) Handle(ctx context.Context, conn Conn) {
	h.conn = conn

	// 对话在单独的协程中串行处理，读循环可以随时接收中止消息
	go h.processClientMessagesCoroutine(ctx)

	for {
		select {
		case <-h.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, ErrConnectionClosed) {
				h.logger.Warn("读取消息失败: %v", err)
			}
			return
		}
		if err := h.handleMessage(ctx, messageType, message); err != nil {
			h.logger.Error("处理消息失败: %v", err)
		}
	}
}

// processClientMessagesCoroutine 依次处理文本与音频消息
func (h *ConnectionHandler) processClientMessagesCoroutine(ctx context.Context) {
	for {
		select {
		case <-h.stopChan:
			return
		case <-ctx.Done():
			return
		case msg := <-h.clientTextQueue:
			if err := h.processClientTextMessage(ctx, msg); err != nil {
				h.logger.Error("处理文本消息失败: %v", err)
			}
		case audio := <-h.clientAudioQueue:
			if err := h.processClientAudioMessage(ctx, audio); err != nil {
				h.logger.Error("处理音频消息失败: %v", err)
			}
		}
	}
}

// session 当前会话ID与认证状态
func (h *ConnectionHandler) session() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessionID, h.authenticated
}

func (h *ConnectionHandler) setSession(sessionID string) {
	h.mu.Lock()
	h.sessionID = sessionID
	h.authenticated = true
	h.mu.Unlock()
}

// requireSession 开启认证时必须先完成hello
func (h *ConnectionHandler) requireSession() (string, error) {
	sessionID, authenticated := h.session()
	if h.deps.Auth != nil && !authenticated {
		return "", fmt.Errorf("请先发送hello完成认证")
	}
	return sessionID, nil
}

// clientAbortChat 中止正在进行的对话
func (h *ConnectionHandler) clientAbortChat() {
	h.mu.Lock()
	cancel := h.turnCancel
	h.mu.Unlock()
	if cancel != nil {
		h.logger.Info("收到客户端中止消息，停止本轮对话")
		cancel()
	}
}

// QuitIntent 是否为配置中的退出命令
func (h *ConnectionHandler) QuitIntent(text string) bool {
	return utils.IsQuitCommand(text, h.config.CMDExit)
}

// handleChatMessage 处理聊天消息
func (h *ConnectionHandler) handleChatMessage(ctx context.Context, text string, speak *bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return h.sendErrorMessage("聊天消息为空")
	}
	sessionID, err := h.requireSession()
	if err != nil {
		return h.sendErrorMessage(err.Error())
	}

	if h.QuitIntent(text) {
		h.logger.Info("收到客户端退出意图，准备结束对话")
		h.sendMessage(types.ServerMessage{Type: types.MsgBye, SessionID: sessionID})
		h.Close()
		return nil
	}

	h.talkRound++
	h.roundStartTime = time.Now()
	h.logger.Info("会话 %s 开始新的对话轮次: %d", sessionID, h.talkRound)

	turnCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.turnCancel = cancel
	h.mu.Unlock()
	defer func() {
		cancel()
		h.mu.Lock()
		h.turnCancel = nil
		h.mu.Unlock()
	}()

	stream, err := h.deps.Agent.StreamResponse(turnCtx, sessionID, text)
	if err != nil {
		return h.sendErrorMessage("Error: " + err.Error())
	}

	var full strings.Builder
	failed := false
	for resp := range stream {
		if resp.Error != "" {
			failed = true
			h.sendErrorMessage("Error: " + resp.Error)
			continue
		}
		if resp.Content == "" {
			continue
		}
		full.WriteString(resp.Content)
		if err := h.sendMessage(types.ServerMessage{Type: types.MsgLLM, Text: resp.Content}); err != nil {
			cancel()
		}
	}
	if failed || turnCtx.Err() != nil {
		return nil
	}

	reply := strings.TrimSpace(full.String())
	done := types.ServerMessage{
		Type:      types.MsgDone,
		SessionID: sessionID,
		Text:      reply,
		Emotion:   utils.DetectEmotion(reply),
	}
	if s, ok := speech.ExtractSpeech(reply); ok {
		done.Speech = s
	}
	if err := h.sendMessage(done); err != nil {
		return err
	}
	h.logger.Info("对话轮次 %d 完成，耗时: %s", h.talkRound, time.Since(h.roundStartTime))

	if h.shouldSpeak(speak) {
		h.speak(turnCtx, reply)
	}
	return nil
}

func (h *ConnectionHandler) shouldSpeak(speak *bool) bool {
	if !h.deps.Speaker.Enabled() {
		return false
	}
	return speak == nil || *speak
}

// speak 合成回复中的台词并下发音频地址
func (h *ConnectionHandler) speak(ctx context.Context, reply string) {
	result, err := h.deps.Speaker.Speak(ctx, reply)
	if err != nil {
		if !errors.Is(err, speech.ErrNothingToSay) {
			h.logger.Warn("语音合成失败: %v", err)
			h.sendErrorMessage("语音合成失败: " + err.Error())
		}
		return
	}
	h.sendMessage(types.ServerMessage{
		Type:       types.MsgTTS,
		Speech:     result.Speech,
		AudioURL:   "/api/audio/" + result.AudioFile,
		DurationMs: result.Duration.Milliseconds(),
	})
}

// processClientAudioMessage 识别一段完整的音频并作为聊天消息处理
func (h *ConnectionHandler) processClientAudioMessage(ctx context.Context, audio []byte) error {
	if h.deps.ASR == nil {
		return h.sendErrorMessage("语音识别未启用")
	}
	if _, err := h.requireSession(); err != nil {
		return h.sendErrorMessage(err.Error())
	}

	format := utils.DetectAudioFormat(audio)
	if format == "" {
		format = "wav"
	}
	filename := "audio." + format
	text, err := h.deps.ASR.Transcribe(ctx, audio, filename)
	if err != nil {
		if errors.Is(err, asr.ErrNoSpeech) {
			return h.sendErrorMessage(err.Error())
		}
		return h.sendErrorMessage("Error: " + err.Error())
	}
	h.logger.Info("ASR识别结果: %s", utils.Truncate(text, 50))
	if err := h.sendMessage(types.ServerMessage{Type: types.MsgSTT, Text: text}); err != nil {
		return err
	}
	return h.handleChatMessage(ctx, text, nil)
}

// Close 清理资源
func (h *ConnectionHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.stopChan)
		h.clientAbortChat()
		if h.conn != nil {
			h.conn.Close()
		}
	})
}

func (h *ConnectionHandler) marshal(msg types.ServerMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("序列化%s消息失败: %v", msg.Type, err)
	}
	return data, nil
}
