package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"noir-server-go/src/core/chat"
	"noir-server-go/src/core/providers/asr"
	"noir-server-go/src/core/speech"
	"noir-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// 最大音频文件大小为25MB，与Whisper接口限制一致
	MAX_AUDIO_SIZE = 25 * 1024 * 1024

	defaultSessionID = "default"
)

type DefaultChatService struct {
	deps *Deps
}

// NewDefaultChatService 构造函数
func NewDefaultChatService(deps *Deps) *DefaultChatService {
	return &DefaultChatService{deps: deps}
}

// Start 注册对话相关路由
func (s *DefaultChatService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	apiGroup.GET("/status", s.handleStatus)
	apiGroup.POST("/session", s.handleNewSession)

	secured := apiGroup.Group("", RequireAuth(s.deps.Auth))
	secured.POST("/chat", s.handleChat)
	secured.POST("/chat/stream", s.handleChatStream)
	secured.POST("/voice", s.handleVoice)
	secured.GET("/session/:id/history", s.handleHistory)
	secured.POST("/session/:id/clear", s.handleClear)
	secured.DELETE("/session/:id", s.handleDeleteSession)

	s.deps.Logger.Info("Chat HTTP服务路由注册完成")
	return nil
}

func (s *DefaultChatService) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		LLM:         s.deps.Agent != nil,
		TTS:         s.deps.Speaker.Enabled(),
		ASR:         s.deps.ASR != nil,
		Memory:      s.deps.Memory.Enabled(),
		Transcripts: s.deps.Agent.Sessions().Transcripts() != nil,
		Sessions:    s.deps.Agent.Sessions().Len(),
		Websocket:   s.deps.Config.Web.Websocket,
	})
}

func (s *DefaultChatService) handleNewSession(c *gin.Context) {
	sessionID := uuid.NewString()
	s.deps.Agent.Sessions().Get(c.Request.Context(), sessionID)

	resp := gin.H{"success": true, "session_id": sessionID}
	if s.deps.Auth != nil {
		token, err := s.deps.Auth.GenerateToken(sessionID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
		resp["token"] = token
	}
	c.JSON(http.StatusOK, resp)
}

func sessionOrDefault(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return defaultSessionID
	}
	return id
}

func (s *DefaultChatService) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "解析失败: "+err.Error())
		return
	}
	req.SessionID = sessionOrDefault(req.SessionID)
	if !authorizeSession(c, s.deps.Auth, req.SessionID) {
		return
	}

	resp, status := s.reply(c.Request.Context(), req)
	c.JSON(status, resp)
}

// reply 执行一轮对话并按需合成语音
func (s *DefaultChatService) reply(ctx context.Context, req ChatRequest) (ChatResponse, int) {
	reply, err := s.deps.Agent.Respond(ctx, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyInput) {
			return ChatResponse{Success: false, Message: err.Error()}, http.StatusBadRequest
		}
		s.deps.Logger.Warn("会话 %s 对话失败: %v", req.SessionID, err)
		return ChatResponse{Success: false, Message: "Error: " + err.Error()}, http.StatusBadGateway
	}

	resp := ChatResponse{
		Success:   true,
		SessionID: req.SessionID,
		Reply:     reply,
		Emotion:   utils.DetectEmotion(reply),
	}
	if text, ok := speech.ExtractSpeech(reply); ok {
		resp.Speech = text
	}
	if req.Speak {
		s.attachAudio(ctx, &resp)
	}
	return resp, http.StatusOK
}

func (s *DefaultChatService) attachAudio(ctx context.Context, resp *ChatResponse) {
	if !s.deps.Speaker.Enabled() {
		return
	}
	result, err := s.deps.Speaker.Speak(ctx, resp.Reply)
	if err != nil {
		if !errors.Is(err, speech.ErrNothingToSay) {
			s.deps.Logger.Warn("语音合成失败: %v", err)
		}
		return
	}
	resp.Speech = result.Speech
	resp.AudioURL = audioURL(result.AudioFile)
	resp.DurationMs = result.Duration.Milliseconds()
}

func audioURL(filename string) string {
	return "/api/audio/" + filename
}

func (s *DefaultChatService) handleChatStream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "解析失败: "+err.Error())
		return
	}
	req.SessionID = sessionOrDefault(req.SessionID)
	if !authorizeSession(c, s.deps.Auth, req.SessionID) {
		return
	}

	ctx := c.Request.Context()
	stream, err := s.deps.Agent.StreamResponse(ctx, req.SessionID, req.Message)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, chat.ErrEmptyInput) {
			status = http.StatusBadRequest
		}
		respondError(c, status, err.Error())
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	var full strings.Builder
	failed := false
	for resp := range stream {
		if resp.Error != "" {
			failed = true
			c.SSEvent("error", gin.H{"message": "Error: " + resp.Error})
		} else if resp.Content != "" {
			full.WriteString(resp.Content)
			c.SSEvent("delta", gin.H{"text": resp.Content})
		}
		c.Writer.Flush()
	}
	if failed || ctx.Err() != nil {
		return
	}

	done := ChatResponse{
		Success:   true,
		SessionID: req.SessionID,
		Reply:     strings.TrimSpace(full.String()),
	}
	done.Emotion = utils.DetectEmotion(done.Reply)
	if text, ok := speech.ExtractSpeech(done.Reply); ok {
		done.Speech = text
	}
	if req.Speak {
		s.attachAudio(ctx, &done)
	}
	c.SSEvent("done", done)
	c.Writer.Flush()
}

func (s *DefaultChatService) handleVoice(c *gin.Context) {
	if s.deps.ASR == nil {
		respondError(c, http.StatusServiceUnavailable, "语音识别未启用")
		return
	}

	sessionID := sessionOrDefault(c.PostForm("session_id"))
	if !authorizeSession(c, s.deps.Auth, sessionID) {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("缺少音频文件: %v", err))
		return
	}
	defer file.Close()
	if header.Size > MAX_AUDIO_SIZE {
		respondError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("音频大小超过限制，最大允许%dMB", MAX_AUDIO_SIZE/1024/1024))
		return
	}
	audio, err := io.ReadAll(io.LimitReader(file, MAX_AUDIO_SIZE))
	if err != nil || len(audio) == 0 {
		respondError(c, http.StatusBadRequest, "音频数据为空")
		return
	}

	ctx := c.Request.Context()
	text, err := s.deps.ASR.Transcribe(ctx, audio, header.Filename)
	if err != nil {
		if errors.Is(err, asr.ErrNoSpeech) {
			respondError(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.deps.Logger.Warn("语音识别失败: %v", err)
		respondError(c, http.StatusBadGateway, "Error: "+err.Error())
		return
	}
	s.deps.Logger.Info("会话 %s 语音识别结果: %s", sessionID, utils.Truncate(text, 50))

	resp, status := s.reply(ctx, ChatRequest{
		SessionID: sessionID,
		Message:   text,
		Speak:     c.PostForm("speak") == "true",
	})
	resp.Transcript = text
	c.JSON(status, resp)
}

func (s *DefaultChatService) handleHistory(c *gin.Context) {
	sessionID := c.Param("id")
	if !authorizeSession(c, s.deps.Auth, sessionID) {
		return
	}
	session := s.deps.Agent.Sessions().Get(c.Request.Context(), sessionID)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": sessionID,
		"history":    session.Dialogue().History(),
	})
}

func (s *DefaultChatService) handleClear(c *gin.Context) {
	sessionID := c.Param("id")
	if !authorizeSession(c, s.deps.Auth, sessionID) {
		return
	}
	if err := s.deps.Agent.Clear(c.Request.Context(), sessionID); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "历史和记忆已清空"})
}

func (s *DefaultChatService) handleDeleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	if !authorizeSession(c, s.deps.Auth, sessionID) {
		return
	}
	if err := s.deps.Agent.Sessions().Delete(c.Request.Context(), sessionID); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
